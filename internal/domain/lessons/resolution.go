package lessons

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DuplicateTypeExact   = "exact"
	DuplicateTypeNear    = "near"
	DuplicateTypeVersion = "version"
	DuplicateTypeTitle   = "title"
)

var DuplicateTypes = []string{DuplicateTypeExact, DuplicateTypeNear, DuplicateTypeVersion, DuplicateTypeTitle}

const (
	ResolutionModeSingle  = "single"
	ResolutionModeSplit   = "split"
	ResolutionModeKeepAll = "keep_all"
)

var ResolutionModes = []string{ResolutionModeSingle, ResolutionModeSplit, ResolutionModeKeepAll}

// CanonicalLesson maps a live duplicate lesson to its canonical lesson.
type CanonicalLesson struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DuplicateID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;check:chk_canonical_no_self,duplicate_id <> canonical_id" json:"duplicate_id"`
	CanonicalID     uuid.UUID `gorm:"type:uuid;not null;index" json:"canonical_id"`
	SimilarityScore float64   `gorm:"not null;check:chk_canonical_score,similarity_score >= 0 AND similarity_score <= 1" json:"similarity_score"`
	ResolutionType  string    `gorm:"type:text;not null;check:chk_canonical_type,resolution_type IN ('exact','near','version','title')" json:"resolution_type"`
	ResolvedBy      uuid.UUID `gorm:"type:uuid;not null" json:"resolved_by"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (CanonicalLesson) TableName() string { return "canonical_lesson" }

func (c *CanonicalLesson) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TitleChange records one title correction applied during a resolution.
type TitleChange struct {
	LessonID uuid.UUID `json:"lesson_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
}

// DuplicateResolution is the ledger row written for every resolution decision.
type DuplicateResolution struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID         string    `gorm:"type:text;not null;index" json:"group_id"`
	CanonicalID     uuid.UUID `gorm:"type:uuid;not null;index" json:"canonical_id"`
	DuplicateType   string    `gorm:"type:text;not null;check:chk_resolution_type,duplicate_type IN ('exact','near','version','title')" json:"duplicate_type"`
	SimilarityScore float64   `gorm:"not null;check:chk_resolution_score,similarity_score >= 0 AND similarity_score <= 1" json:"similarity_score"`
	LessonsInGroup  int       `gorm:"not null" json:"lessons_in_group"`
	ActionTaken     string    `gorm:"type:text;not null" json:"action_taken"`
	Notes           string    `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	ResolvedBy      uuid.UUID `gorm:"type:uuid;not null;index" json:"resolved_by"`
	ResolutionMode  string    `gorm:"type:text;not null;check:chk_resolution_mode,resolution_mode IN ('single','split','keep_all')" json:"resolution_mode"`
	SubGroupName    string    `gorm:"type:text" json:"sub_group_name,omitempty"`
	ParentGroupID   string    `gorm:"type:text;index" json:"parent_group_id,omitempty"`

	DuplicateIDs   datatypes.JSONSlice[uuid.UUID]   `gorm:"type:jsonb" json:"duplicate_ids"`
	TitleChanges   datatypes.JSONSlice[TitleChange] `gorm:"type:jsonb" json:"title_changes"`
	MetadataMerged bool                             `gorm:"not null;default:false" json:"metadata_merged"`
	ArchivedCount  int                              `gorm:"not null;default:0" json:"archived_count"`

	ResolvedAt time.Time `gorm:"not null;index" json:"resolved_at"`
}

func (DuplicateResolution) TableName() string { return "duplicate_resolution" }

func (r *DuplicateResolution) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

const (
	RoleTeacher    = "teacher"
	RoleReviewer   = "reviewer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// UserRole backs the authorization lookup for review and resolution actions.
type UserRole struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role      string    `gorm:"type:text;not null;check:chk_user_role,role IN ('teacher','reviewer','admin','super_admin')" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UserRole) TableName() string { return "user_role" }

// CanResolve reports whether role may review submissions and resolve duplicates.
func CanResolve(role string) bool {
	switch role {
	case RoleReviewer, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func Valid(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// AllModels lists every table owned by the engine, in migration order.
func AllModels() []any {
	return []any{
		&Lesson{},
		&Submission{},
		&Review{},
		&SubmissionSimilarity{},
		&CanonicalLesson{},
		&LessonArchive{},
		&LessonVersion{},
		&SynonymEntry{},
		&CulturalHierarchyNode{},
		&DuplicateResolution{},
		&UserRole{},
	}
}

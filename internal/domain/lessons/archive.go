package lessons

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LessonArchive is a point-in-time copy of a lesson removed from the catalog.
// Rows are append-only.
type LessonArchive struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_id"`

	ExternalID        string                         `gorm:"type:text;not null;index" json:"external_id"`
	Title             string                         `gorm:"type:text;not null" json:"title"`
	Summary           string                         `gorm:"type:text;not null;default:''" json:"summary"`
	FileLink          string                         `gorm:"type:text" json:"file_link,omitempty"`
	GradeLevels       datatypes.JSONSlice[string]    `gorm:"type:jsonb" json:"grade_levels"`
	Metadata          datatypes.JSONType[Attributes] `gorm:"type:jsonb" json:"metadata"`
	Confidence        datatypes.JSONType[Confidence] `gorm:"type:jsonb" json:"confidence"`
	ContentText       string                         `gorm:"type:text;not null;default:''" json:"content_text,omitempty"`
	ContentHash       string                         `gorm:"type:text;index" json:"content_hash,omitempty"`
	Embedding         *pgvector.Vector               `gorm:"type:vector(1536)" json:"-"`
	FlaggedForReview  bool                           `gorm:"not null;default:false" json:"flagged_for_review"`
	HasVersions       bool                           `gorm:"not null;default:false" json:"has_versions"`
	VersionNumber     int                            `gorm:"not null;default:1" json:"version_number"`
	AuditNotes        string                         `gorm:"type:text;not null;default:''" json:"audit_notes,omitempty"`
	LessonCreatedAt   time.Time                      `gorm:"not null" json:"lesson_created_at"`
	LessonUpdatedAt   time.Time                      `gorm:"not null" json:"lesson_updated_at"`

	ArchiveReason     string     `gorm:"type:text;not null" json:"archive_reason"`
	ArchivedBy        uuid.UUID  `gorm:"type:uuid;not null;index" json:"archived_by"`
	ArchivedAt        time.Time  `gorm:"not null;index" json:"archived_at"`
	CanonicalID       *uuid.UUID `gorm:"type:uuid;index" json:"canonical_id,omitempty"`
	ResolutionGroupID string     `gorm:"type:text;not null;index" json:"resolution_group_id"`
}

func (LessonArchive) TableName() string { return "lesson_archive" }

func (a *LessonArchive) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// NewArchiveSnapshot copies every catalog field of l.
func NewArchiveSnapshot(l *Lesson, reason string, archivedBy uuid.UUID, canonicalID uuid.UUID, groupID string, at time.Time) *LessonArchive {
	canon := canonicalID
	return &LessonArchive{
		LessonID:          l.ID,
		ExternalID:        l.ExternalID,
		Title:             l.Title,
		Summary:           l.Summary,
		FileLink:          l.FileLink,
		GradeLevels:       slice(l.GradeLevels),
		Metadata:          l.Metadata,
		Confidence:        l.Confidence,
		ContentText:       l.ContentText,
		ContentHash:       l.ContentHash,
		Embedding:         l.Embedding,
		FlaggedForReview:  l.FlaggedForReview,
		HasVersions:       l.HasVersions,
		VersionNumber:     l.VersionNumber,
		AuditNotes:        l.AuditNotes,
		LessonCreatedAt:   l.CreatedAt,
		LessonUpdatedAt:   l.UpdatedAt,
		ArchiveReason:     reason,
		ArchivedBy:        archivedBy,
		ArchivedAt:        at,
		CanonicalID:       &canon,
		ResolutionGroupID: groupID,
	}
}

// LessonVersion snapshots a lesson before an update-type submission is applied.
type LessonVersion struct {
	ID            uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID      uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_version_number" json:"lesson_id"`
	VersionNumber int                            `gorm:"not null;uniqueIndex:idx_lesson_version_number" json:"version_number"`
	SubmissionID  *uuid.UUID                     `gorm:"type:uuid;index" json:"submission_id,omitempty"`
	Title         string                         `gorm:"type:text;not null" json:"title"`
	Summary       string                         `gorm:"type:text;not null;default:''" json:"summary"`
	GradeLevels   datatypes.JSONSlice[string]    `gorm:"type:jsonb" json:"grade_levels"`
	Metadata      datatypes.JSONType[Attributes] `gorm:"type:jsonb" json:"metadata"`
	ContentText   string                         `gorm:"type:text;not null;default:''" json:"content_text,omitempty"`
	ContentHash   string                         `gorm:"type:text" json:"content_hash,omitempty"`
	CreatedAt     time.Time                      `gorm:"not null" json:"created_at"`
}

func (LessonVersion) TableName() string { return "lesson_version" }

func (v *LessonVersion) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func NewVersionSnapshot(l *Lesson, submissionID *uuid.UUID) *LessonVersion {
	return &LessonVersion{
		LessonID:      l.ID,
		VersionNumber: l.VersionNumber,
		SubmissionID:  submissionID,
		Title:         l.Title,
		Summary:       l.Summary,
		GradeLevels:   slice(l.GradeLevels),
		Metadata:      l.Metadata,
		ContentText:   l.ContentText,
		ContentHash:   l.ContentHash,
	}
}

package lessons

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SubmissionStatusSubmitted     = "submitted"
	SubmissionStatusInReview      = "in_review"
	SubmissionStatusNeedsRevision = "needs_revision"
	SubmissionStatusApproved      = "approved"
	SubmissionStatusRejected      = "rejected"
)

// Submission is a teacher-provided candidate lesson awaiting review.
type Submission struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DocumentRef    string `gorm:"column:document_ref;type:text;not null" json:"document_ref"`
	ExtractedTitle string `gorm:"type:text;not null;default:''" json:"extracted_title"`
	ExtractedBody  string `gorm:"type:text;not null;default:''" json:"extracted_body,omitempty"`

	GradeLevels datatypes.JSONSlice[string]    `gorm:"type:jsonb" json:"grade_levels"`
	Metadata    datatypes.JSONType[Attributes] `gorm:"type:jsonb" json:"metadata"`

	ContentHash string           `gorm:"type:text;index" json:"content_hash,omitempty"`
	Embedding   *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`

	Status           string     `gorm:"type:text;not null;index;check:chk_submission_status,status IN ('submitted','in_review','needs_revision','approved','rejected')" json:"status"`
	SubmittedBy      uuid.UUID  `gorm:"type:uuid;not null;index" json:"submitted_by"`
	ReviewerID       *uuid.UUID `gorm:"type:uuid;index" json:"reviewer_id,omitempty"`
	OriginalLessonID *uuid.UUID `gorm:"type:uuid;index" json:"original_lesson_id,omitempty"`
	PublishedID      *uuid.UUID `gorm:"column:published_lesson_id;type:uuid" json:"published_lesson_id,omitempty"`

	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

func (Submission) TableName() string { return "lesson_submission" }

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SubmissionStatusSubmitted
	}
	s.GradeLevels = slice(s.GradeLevels)
	return nil
}

func (s *Submission) EmbeddingSlice() []float32 {
	if s.Embedding == nil {
		return nil
	}
	return s.Embedding.Slice()
}

const (
	DecisionApproveNew    = "approve_new"
	DecisionApproveUpdate = "approve_update"
	DecisionReject        = "reject"
	DecisionNeedsRevision = "needs_revision"
)

// Review is one reviewer's decision on a submission.
type Review struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission_id"`
	ReviewerID   uuid.UUID `gorm:"type:uuid;not null;index" json:"reviewer_id"`
	Decision     string    `gorm:"type:text;not null;check:chk_review_decision,decision IN ('approve_new','approve_update','reject','needs_revision')" json:"decision"`

	DetectedDuplicates datatypes.JSONSlice[DuplicateSnapshot] `gorm:"type:jsonb" json:"detected_duplicates"`
	TaggedMetadata     datatypes.JSONType[Attributes]         `gorm:"type:jsonb" json:"tagged_metadata"`
	Notes              string                                 `gorm:"type:text;not null;default:''" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Review) TableName() string { return "submission_review" }

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.DetectedDuplicates == nil {
		r.DetectedDuplicates = datatypes.JSONSlice[DuplicateSnapshot]{}
	}
	return nil
}

// DuplicateSnapshot freezes a candidate as the reviewer saw it.
type DuplicateSnapshot struct {
	LessonID      uuid.UUID `json:"lesson_id"`
	Title         string    `json:"title"`
	CombinedScore float64   `json:"combined_score"`
	MatchType     string    `json:"match_type"`
}

package lessons

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MatchExact  = "exact"
	MatchHigh   = "high"
	MatchMedium = "medium"
	MatchLow    = "low"
)

// SubmissionSimilarity caches the pairwise score between a submission and a catalog lesson.
type SubmissionSimilarity struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_similarity_pair" json:"submission_id"`
	LessonID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submission_similarity_pair;index" json:"lesson_id"`

	TitleSimilarity      float64 `gorm:"not null;default:0" json:"title_similarity"`
	ContentSimilarity    float64 `gorm:"not null;default:0" json:"content_similarity"`
	MetadataOverlapScore float64 `gorm:"not null;default:0" json:"metadata_overlap_score"`
	CombinedScore        float64 `gorm:"not null;default:0;index;check:chk_similarity_combined,combined_score >= 0 AND combined_score <= 1" json:"combined_score"`
	MatchType            string  `gorm:"type:text;not null" json:"match_type"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SubmissionSimilarity) TableName() string { return "submission_similarity" }

func (s *SubmissionSimilarity) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

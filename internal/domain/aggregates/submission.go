package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/yungbote/lessonbank-backend/internal/domain/lessons"
)

var SubmissionAggregateContract = Contract{
	Name:             "Lessons.SubmissionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	OwnedTables:      []string{"submission_review", "lesson_version"},
	Notes:            "Submission status progression, review records and lesson publication or versioned update.",
}

// SubmissionAggregate owns submission lifecycle invariants.
type SubmissionAggregate interface {
	Aggregate

	// StartReview moves a submitted or needs_revision submission into review.
	StartReview(ctx context.Context, in StartReviewInput) (StartReviewResult, error)

	// RecordReview stores a decision and applies its catalog effect atomically.
	RecordReview(ctx context.Context, in RecordReviewInput) (RecordReviewResult, error)
}

type StartReviewInput struct {
	SubmissionID uuid.UUID
	ReviewerID   uuid.UUID
}

type StartReviewResult struct {
	SubmissionID uuid.UUID
	Status       string
}

type RecordReviewInput struct {
	SubmissionID       uuid.UUID
	ReviewerID         uuid.UUID
	Decision           string
	Notes              string
	TaggedMetadata     *lessons.Attributes
	GradeLevels        []string
	DetectedDuplicates []lessons.DuplicateSnapshot
	// Title and Summary override the extracted values on publish when set.
	Title   string
	Summary string
}

type RecordReviewResult struct {
	ReviewID      uuid.UUID
	SubmissionID  uuid.UUID
	Status        string
	LessonID      *uuid.UUID
	VersionNumber int
}

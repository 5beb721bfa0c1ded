package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LessonOption mutates a fixture lesson before insert.
type LessonOption func(*types.Lesson)

func WithGrades(grades ...string) LessonOption {
	return func(l *types.Lesson) { l.GradeLevels = grades }
}

func WithAttrs(a types.Attributes) LessonOption {
	return func(l *types.Lesson) { l.Metadata = datatypes.NewJSONType(a) }
}

func WithBody(body, hash string) LessonOption {
	return func(l *types.Lesson) {
		l.ContentText = body
		l.ContentHash = hash
	}
}

func WithSummary(summary string) LessonOption {
	return func(l *types.Lesson) { l.Summary = summary }
}

func WithConfidence(overall float64) LessonOption {
	return func(l *types.Lesson) { l.Confidence = datatypes.NewJSONType(types.Confidence{Overall: overall}) }
}

func WithEmbedding(vec []float32) LessonOption {
	return func(l *types.Lesson) { l.SetEmbedding(vec) }
}

func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, title string, opts ...LessonOption) *types.Lesson {
	tb.Helper()
	l := &types.Lesson{
		ID:         uuid.New(),
		ExternalID: "ext-" + uuid.NewString(),
		Title:      title,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	return l
}

func SeedSubmission(tb testing.TB, ctx context.Context, tx *gorm.DB, title, body string, submittedBy uuid.UUID) *types.Submission {
	tb.Helper()
	s := &types.Submission{
		ID:             uuid.New(),
		DocumentRef:    "gs://lessons/" + uuid.NewString() + ".pdf",
		ExtractedTitle: title,
		ExtractedBody:  body,
		SubmittedBy:    submittedBy,
		Status:         types.SubmissionStatusSubmitted,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed submission: %v", err)
	}
	return s
}

func SeedRole(tb testing.TB, ctx context.Context, tx *gorm.DB, role string, active bool) uuid.UUID {
	tb.Helper()
	id := uuid.New()
	row := &types.UserRole{UserID: id, Role: role, IsActive: active, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed role: %v", err)
	}
	return id
}

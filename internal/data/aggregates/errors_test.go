package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"pg check", &pgconn.PgError{Code: "23514"}, domainagg.CodeInvariantViolation},
		{"pg not null", &pgconn.PgError{Code: "23502"}, domainagg.CodeInvariantViolation},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domainagg.CodeRetryable},
		{"pg deadlock", fmt.Errorf("archive insert: %w", &pgconn.PgError{Code: "40P01"}), domainagg.CodeRetryable},
		{"sqlite unique", errors.New("UNIQUE constraint failed: canonical_lesson.duplicate_id"), domainagg.CodeConflict},
		{"sqlite check", errors.New("CHECK constraint failed: chk_resolution_score"), domainagg.CodeInvariantViolation},
		{"sqlite locked", errors.New("database is locked"), domainagg.CodeRetryable},
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"canceled", context.Canceled, domainagg.CodeRetryable},
		{"precondition", PreconditionError("inactive role"), domainagg.CodePreconditionFailed},
		{"unknown", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError("Lessons.Test", tc.err)
			if domainagg.CodeOf(got) != tc.want {
				t.Fatalf("want %s, got %v", tc.want, got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("mapped error should wrap the cause")
			}
		})
	}
}

func TestMapErrorPassesAggregateErrorsThrough(t *testing.T) {
	orig := notFound("Lessons.DuplicateResolution.ResolveGroup", "lesson", "abc")
	got := MapError("outer.op", fmt.Errorf("wrapped: %w", orig))
	var ae *domainagg.Error
	if !errors.As(got, &ae) {
		t.Fatalf("expected *domainagg.Error, got %T", got)
	}
	if ae.Op != "Lessons.DuplicateResolution.ResolveGroup" || ae.Subject != "abc" {
		t.Fatalf("op/subject lost: %+v", ae)
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}

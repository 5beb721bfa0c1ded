package aggregates

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageIncludesSubjectAndCode(t *testing.T) {
	err := NewSubjectError(CodeNotFound, "duplicates.resolve", "lesson-b", "duplicate lesson not found", nil)
	msg := err.Error()
	for _, want := range []string{"duplicates.resolve", "lesson-b", "not_found"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	if SubjectOf(err) != "lesson-b" {
		t.Fatalf("subject: %q", SubjectOf(err))
	}
}

func TestDetailReturnsRootCause(t *testing.T) {
	root := errors.New("pq: deadlock detected")
	err := NewError(CodeRetryable, "op", "write failed", fmt.Errorf("archive insert: %w", root))
	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *Error")
	}
	if ae.Detail() != root.Error() {
		t.Fatalf("detail: %q", ae.Detail())
	}
	if !IsCode(fmt.Errorf("outer: %w", err), CodeRetryable) {
		t.Fatalf("IsCode should see through wrapping")
	}
}

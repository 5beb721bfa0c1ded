package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
)

func TestExecuteWriteReportsStatusPerCode(t *testing.T) {
	cases := []struct {
		name      string
		body      error
		want      domainagg.ErrorCode
		status    string
		conflicts int
		retries   int
	}{
		{name: "success", status: "success"},
		{name: "validation", body: ValidationError("bad group"), want: domainagg.CodeValidation, status: "validation"},
		{name: "invariant", body: InvariantError("self duplicate"), want: domainagg.CodeInvariantViolation, status: "invariant_violation"},
		{name: "precondition", body: PreconditionError("teacher may not resolve"), want: domainagg.CodePreconditionFailed, status: "precondition_failed"},
		{name: "conflict", body: ConflictError("status moved"), want: domainagg.CodeConflict, status: "conflict", conflicts: 1},
		{name: "retryable", body: RetryableError("deadlock"), want: domainagg.CodeRetryable, status: "retryable", retries: 1},
		{name: "unknown", body: errors.New("disk on fire"), want: domainagg.CodeInternal, status: "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &spyHooks{}
			err := executeWrite(context.Background(), BaseDeps{Runner: spyTxRunner{}, Hooks: hooks},
				"Lessons.Test.Write", func(_ dbctx.Context) error { return tc.body })
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected err: %v", err)
				}
			} else if !domainagg.IsCode(err, tc.want) {
				t.Fatalf("want code %s, got %v", tc.want, err)
			}
			if len(hooks.Operations) != 1 || hooks.Operations[0].Status != tc.status {
				t.Fatalf("operations: %+v", hooks.Operations)
			}
			if len(hooks.Conflicts) != tc.conflicts || len(hooks.Retries) != tc.retries {
				t.Fatalf("conflicts=%v retries=%v", hooks.Conflicts, hooks.Retries)
			}
		})
	}
}

func TestExecuteWriteKeepsSubjectErrors(t *testing.T) {
	err := executeWrite(context.Background(), BaseDeps{Runner: spyTxRunner{}},
		"Lessons.Test.Write", func(_ dbctx.Context) error {
			return notFound("Lessons.Test.Write", "lesson", "7b1c")
		})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
	if domainagg.SubjectOf(err) != "7b1c" {
		t.Fatalf("subject: %q", domainagg.SubjectOf(err))
	}
}

func TestBaseDepsNowIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	got := BaseDeps{Now: func() time.Time { return fixed }}.now()
	if got.Location() != time.UTC || !got.Equal(fixed) {
		t.Fatalf("now: %v", got)
	}
}

type spyTxRunner struct{}

func (spyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	Operations []spyOperation
	Conflicts  []string
	Retries    []string
}

type spyOperation struct {
	Name   string
	Status string
}

func (h *spyHooks) ObserveOperation(name, status string, _ time.Duration) {
	h.Operations = append(h.Operations, spyOperation{Name: name, Status: status})
}

func (h *spyHooks) IncConflict(name string) { h.Conflicts = append(h.Conflicts, name) }

func (h *spyHooks) IncRetry(name string) { h.Retries = append(h.Retries, name) }

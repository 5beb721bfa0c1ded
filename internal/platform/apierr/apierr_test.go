package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
)

func TestFromAggregateStatus(t *testing.T) {
	cases := []struct {
		code   domainagg.ErrorCode
		status int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodeInvariantViolation, http.StatusUnprocessableEntity},
		{domainagg.CodePreconditionFailed, http.StatusForbidden},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", domainagg.NewError(tc.code, "op", "msg", nil))
		got := FromAggregate(err)
		if got.Status != tc.status || got.Code != string(tc.code) {
			t.Fatalf("%s: got status=%d code=%q", tc.code, got.Status, got.Code)
		}
	}
}

func TestFromAggregatePlainAndPassthrough(t *testing.T) {
	if FromAggregate(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
	got := FromAggregate(errors.New("boom"))
	if got.Status != http.StatusInternalServerError || got.Code != "internal" {
		t.Fatalf("plain error: %+v", got)
	}
	pre := New(http.StatusTeapot, "teapot", errors.New("short and stout"))
	if FromAggregate(pre) != pre {
		t.Fatalf("api error not passed through")
	}
}

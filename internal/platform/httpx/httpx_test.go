package httpx

import (
	"context"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return "status" }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{statusErr(429), true},
		{statusErr(503), true},
		{statusErr(400), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("IsRetryableError(%v): want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestRetryAfterDurationCapsAtMax(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "120")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("want 10s got %s", got)
	}
	if got := RetryAfterDuration(nil, time.Second, 10*time.Second); got != time.Second {
		t.Fatalf("want fallback got %s", got)
	}
}

func TestBackoffStaysWithinJitterBand(t *testing.T) {
	for attempt := 0; attempt < 6; attempt++ {
		d := Backoff(attempt, 500*time.Millisecond, 4*time.Second)
		if d < 0 || d > time.Duration(float64(4*time.Second)*1.2)+time.Millisecond {
			t.Fatalf("attempt %d out of band: %s", attempt, d)
		}
	}
}

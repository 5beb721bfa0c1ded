package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/modules/dedup"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type fakeResolutionAgg struct {
	res    domainagg.ResolveDuplicateGroupResult
	err    error
	called int
}

func (f *fakeResolutionAgg) Contract() domainagg.Contract {
	return domainagg.DuplicateResolutionAggregateContract
}

func (f *fakeResolutionAgg) ResolveGroup(context.Context, domainagg.ResolveDuplicateGroupInput) (domainagg.ResolveDuplicateGroupResult, error) {
	f.called++
	return f.res, f.err
}

func (f *fakeResolutionAgg) LinkCanonical(_ context.Context, in domainagg.LinkCanonicalInput) (domainagg.LinkCanonicalResult, error) {
	return domainagg.LinkCanonicalResult{DuplicateID: in.DuplicateID, CanonicalID: in.CanonicalID}, f.err
}

func (f *fakeResolutionAgg) DeleteArchive(context.Context, domainagg.DeleteArchiveInput) error {
	return f.err
}

type fakeDetector struct {
	candidates []dedup.Candidate
	err        error
	refresh    []bool
}

func (f *fakeDetector) DetectForSubmission(_ context.Context, _ uuid.UUID, opts dedup.DetectOptions) ([]dedup.Candidate, error) {
	f.refresh = append(f.refresh, opts.Refresh)
	return f.candidates, f.err
}

func (f *fakeDetector) DetectForLesson(context.Context, uuid.UUID) ([]dedup.Candidate, error) {
	return f.candidates, f.err
}

func TestResolveDuplicateGroupSuccessOutcome(t *testing.T) {
	rid := uuid.New()
	agg := &fakeResolutionAgg{res: domainagg.ResolveDuplicateGroupResult{
		ResolutionID:  rid,
		Mode:          "single",
		ActionTaken:   "merge_and_archive",
		ArchivedCount: 2,
		DeletedCount:  2,
		TitlesUpdated: 1,
	}}
	svc := NewDuplicateService(logger.Nop(), agg, &fakeDetector{})
	out := svc.ResolveDuplicateGroup(context.Background(), domainagg.ResolveDuplicateGroupInput{GroupID: "g1"})
	if !out.Success || out.ResolutionID != rid || out.ArchivedCount != 2 || out.TitlesUpdated != 1 || out.ActionTaken != "merge_and_archive" {
		t.Fatalf("outcome=%+v", out)
	}
	if out.ErrorCode != "" || out.Error != "" {
		t.Fatalf("unexpected error fields: %+v", out)
	}
}

func TestResolveDuplicateGroupFailureOutcome(t *testing.T) {
	cause := errors.New("lesson row missing")
	agg := &fakeResolutionAgg{err: domainagg.NewSubjectError(domainagg.CodeNotFound, "op", "abc", "lesson not found", cause)}
	svc := NewDuplicateService(logger.Nop(), agg, &fakeDetector{})
	out := svc.ResolveDuplicateGroup(context.Background(), domainagg.ResolveDuplicateGroupInput{GroupID: "g1"})
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.ErrorCode != domainagg.CodeNotFound || out.Subject != "abc" || out.Error != "lesson not found" || out.Detail != "lesson row missing" {
		t.Fatalf("outcome=%+v", out)
	}

	agg.err = errors.New("boom")
	out = svc.ResolveDuplicateGroup(context.Background(), domainagg.ResolveDuplicateGroupInput{GroupID: "g1"})
	if out.Success || out.ErrorCode != domainagg.CodeInternal || out.Error != "boom" {
		t.Fatalf("plain error outcome=%+v", out)
	}
}

func TestCandidatesNeverNil(t *testing.T) {
	det := &fakeDetector{}
	svc := NewDuplicateService(logger.Nop(), &fakeResolutionAgg{}, det)
	out, err := svc.CandidatesForSubmission(context.Background(), uuid.New(), true)
	if err != nil || out == nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
	if len(det.refresh) != 1 || !det.refresh[0] {
		t.Fatalf("refresh not forwarded: %v", det.refresh)
	}
	out, err = svc.CandidatesForLesson(context.Background(), uuid.New())
	if err != nil || out == nil {
		t.Fatalf("lesson out=%v err=%v", out, err)
	}
}

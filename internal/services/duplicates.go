package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/modules/dedup"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

// CandidateDetector is the subset of dedup.Detector the services call.
type CandidateDetector interface {
	DetectForSubmission(ctx context.Context, submissionID uuid.UUID, opts dedup.DetectOptions) ([]dedup.Candidate, error)
	DetectForLesson(ctx context.Context, lessonID uuid.UUID) ([]dedup.Candidate, error)
}

// ResolutionOutcome is the caller-facing result of a resolution attempt.
// Success is false whenever ErrorCode is set.
type ResolutionOutcome struct {
	Success       bool                `json:"success"`
	ResolutionID  uuid.UUID           `json:"resolution_id,omitempty"`
	ActionTaken   string              `json:"action_taken,omitempty"`
	ArchivedCount int                 `json:"archived_count"`
	DeletedCount  int                 `json:"deleted_count"`
	TitlesUpdated int                 `json:"titles_updated"`
	MergedFacets  []string            `json:"merged_facets,omitempty"`
	ArchivedIDs   []uuid.UUID         `json:"archived_lesson_ids,omitempty"`
	Error         string              `json:"error,omitempty"`
	ErrorCode     domainagg.ErrorCode `json:"error_code,omitempty"`
	Subject       string              `json:"subject,omitempty"`
	Detail        string              `json:"detail,omitempty"`
}

type DuplicateService interface {
	ResolveDuplicateGroup(ctx context.Context, in domainagg.ResolveDuplicateGroupInput) ResolutionOutcome
	LinkCanonical(ctx context.Context, in domainagg.LinkCanonicalInput) (domainagg.LinkCanonicalResult, error)
	DeleteArchive(ctx context.Context, in domainagg.DeleteArchiveInput) error
	CandidatesForSubmission(ctx context.Context, submissionID uuid.UUID, refresh bool) ([]dedup.Candidate, error)
	CandidatesForLesson(ctx context.Context, lessonID uuid.UUID) ([]dedup.Candidate, error)
}

type duplicateService struct {
	log      *logger.Logger
	agg      domainagg.DuplicateResolutionAggregate
	detector CandidateDetector
}

func NewDuplicateService(log *logger.Logger, agg domainagg.DuplicateResolutionAggregate, detector CandidateDetector) DuplicateService {
	return &duplicateService{log: log.With("service", "DuplicateService"), agg: agg, detector: detector}
}

func (s *duplicateService) ResolveDuplicateGroup(ctx context.Context, in domainagg.ResolveDuplicateGroupInput) ResolutionOutcome {
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = "single"
	}
	res, err := s.agg.ResolveGroup(ctx, in)
	if err != nil {
		out := outcomeFromError(err)
		observability.Current().ObserveResolution(mode, string(out.ErrorCode), 0)
		s.log.Warn("duplicate resolution failed",
			"group_id", in.GroupID,
			"canonical_id", in.CanonicalID,
			"code", out.ErrorCode,
			"subject", out.Subject,
			"error", err,
		)
		return out
	}
	observability.Current().ObserveResolution(res.Mode, "ok", res.ArchivedCount)
	return ResolutionOutcome{
		Success:       true,
		ResolutionID:  res.ResolutionID,
		ActionTaken:   res.ActionTaken,
		ArchivedCount: res.ArchivedCount,
		DeletedCount:  res.DeletedCount,
		TitlesUpdated: res.TitlesUpdated,
		MergedFacets:  res.MergedFacets,
		ArchivedIDs:   res.ArchivedIDs,
	}
}

func outcomeFromError(err error) ResolutionOutcome {
	out := ResolutionOutcome{Error: err.Error(), ErrorCode: domainagg.CodeOf(err), Subject: domainagg.SubjectOf(err)}
	if out.ErrorCode == "" {
		out.ErrorCode = domainagg.CodeInternal
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		out.Error = aggErr.Message
		out.Detail = aggErr.Detail()
	}
	return out
}

func (s *duplicateService) LinkCanonical(ctx context.Context, in domainagg.LinkCanonicalInput) (domainagg.LinkCanonicalResult, error) {
	return s.agg.LinkCanonical(ctx, in)
}

func (s *duplicateService) DeleteArchive(ctx context.Context, in domainagg.DeleteArchiveInput) error {
	return s.agg.DeleteArchive(ctx, in)
}

func (s *duplicateService) CandidatesForSubmission(ctx context.Context, submissionID uuid.UUID, refresh bool) ([]dedup.Candidate, error) {
	out, err := s.detector.DetectForSubmission(ctx, submissionID, dedup.DetectOptions{Refresh: refresh})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []dedup.Candidate{}
	}
	return out, nil
}

func (s *duplicateService) CandidatesForLesson(ctx context.Context, lessonID uuid.UUID) ([]dedup.Candidate, error) {
	out, err := s.detector.DetectForLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []dedup.Candidate{}
	}
	return out, nil
}

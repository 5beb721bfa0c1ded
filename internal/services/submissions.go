package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/dedup"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/gcp"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

const createOp = "Lessons.Submission.Create"

// DocumentExtractor reads title and body text from a stored document.
type DocumentExtractor interface {
	Extract(ctx context.Context, ref string) (gcp.ExtractedDocument, error)
}

type Fingerprinter interface {
	Fingerprint(ctx context.Context, title, body string) fingerprint.Fingerprint
}

type CreateSubmissionInput struct {
	DocumentRef      string            `json:"document_ref"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	GradeLevels      []string          `json:"grade_levels"`
	Metadata         *types.Attributes `json:"metadata,omitempty"`
	OriginalLessonID *uuid.UUID        `json:"original_lesson_id,omitempty"`
	SubmittedBy      uuid.UUID         `json:"-"`
}

type CreateSubmissionResult struct {
	Submission *types.Submission `json:"submission"`
	Candidates []dedup.Candidate `json:"duplicates"`
	// DetectionError is set when the submission was stored but duplicate detection failed.
	DetectionError string `json:"detection_error,omitempty"`
}

type SubmissionService interface {
	CreateSubmission(ctx context.Context, in CreateSubmissionInput) (CreateSubmissionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Submission, error)
	List(ctx context.Context, statuses []string, limit, offset int) ([]*types.Submission, error)
	Reviews(ctx context.Context, id uuid.UUID) ([]*types.Review, error)
	StartReview(ctx context.Context, in domainagg.StartReviewInput) (domainagg.StartReviewResult, error)
	RecordReview(ctx context.Context, in domainagg.RecordReviewInput) (domainagg.RecordReviewResult, error)
}

type submissionService struct {
	log         *logger.Logger
	submissions repos.SubmissionRepo
	reviews     repos.ReviewRepo
	agg         domainagg.SubmissionAggregate
	detector    CandidateDetector
	extractor   DocumentExtractor
	fp          Fingerprinter
	now         func() time.Time
}

func NewSubmissionService(
	log *logger.Logger,
	submissions repos.SubmissionRepo,
	reviews repos.ReviewRepo,
	agg domainagg.SubmissionAggregate,
	detector CandidateDetector,
	extractor DocumentExtractor,
	fp Fingerprinter,
) SubmissionService {
	return &submissionService{
		log:         log.With("service", "SubmissionService"),
		submissions: submissions,
		reviews:     reviews,
		agg:         agg,
		detector:    detector,
		extractor:   extractor,
		fp:          fp,
		now:         time.Now,
	}
}

func (s *submissionService) CreateSubmission(ctx context.Context, in CreateSubmissionInput) (CreateSubmissionResult, error) {
	ref := strings.TrimSpace(in.DocumentRef)
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if in.SubmittedBy == uuid.Nil {
		return CreateSubmissionResult{}, domainagg.NewError(domainagg.CodeValidation, createOp, "submitted_by required", nil)
	}
	if ref == "" {
		return CreateSubmissionResult{}, domainagg.NewError(domainagg.CodeValidation, createOp, "document_ref required", nil)
	}

	if title == "" || body == "" {
		if s.extractor == nil {
			return CreateSubmissionResult{}, domainagg.NewError(domainagg.CodePreconditionFailed, createOp, "title and body required when document extraction is not configured", nil)
		}
		doc, err := s.extractor.Extract(ctx, ref)
		if err != nil {
			return CreateSubmissionResult{}, domainagg.NewSubjectError(domainagg.CodeValidation, createOp, ref, "document extraction failed", err)
		}
		if title == "" {
			title = doc.Title
		}
		if body == "" {
			body = doc.Body
		}
	}
	if title == "" || body == "" {
		return CreateSubmissionResult{}, domainagg.NewSubjectError(domainagg.CodeValidation, createOp, ref, "document has no readable text", nil)
	}

	now := s.now().UTC()
	sub := &types.Submission{
		DocumentRef:      ref,
		ExtractedTitle:   title,
		ExtractedBody:    body,
		GradeLevels:      datatypes.JSONSlice[string](cleanList(in.GradeLevels)),
		Status:           types.SubmissionStatusSubmitted,
		SubmittedBy:      in.SubmittedBy,
		OriginalLessonID: in.OriginalLessonID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.Metadata != nil {
		sub.Metadata = datatypes.NewJSONType(*in.Metadata)
	}
	if s.fp != nil {
		fp := s.fp.Fingerprint(ctx, title, body)
		sub.ContentHash = fp.Hash
		sub.Embedding = types.VectorPtr(fp.Embedding)
		if fp.EmbeddingErr != nil {
			s.log.Warn("submission stored without embedding", "document_ref", ref, "error", fp.EmbeddingErr)
		}
	}
	if err := s.submissions.Create(dbctx.New(ctx), sub); err != nil {
		return CreateSubmissionResult{}, domainagg.Wrap(domainagg.CodeInternal, createOp, fmt.Errorf("create submission: %w", err))
	}
	s.log.Info("submission created", "submission_id", sub.ID, "document_ref", ref)

	out := CreateSubmissionResult{Submission: sub, Candidates: []dedup.Candidate{}}
	if s.detector == nil {
		return out, nil
	}
	candidates, err := s.detector.DetectForSubmission(ctx, sub.ID, dedup.DetectOptions{Refresh: true})
	if err != nil {
		s.log.Warn("duplicate detection failed for new submission", "submission_id", sub.ID, "error", err)
		out.DetectionError = err.Error()
		return out, nil
	}
	if candidates != nil {
		out.Candidates = candidates
	}
	return out, nil
}

func (s *submissionService) Get(ctx context.Context, id uuid.UUID) (*types.Submission, error) {
	sub, err := s.submissions.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Lessons.Submission.Get", err)
	}
	if sub == nil {
		return nil, domainagg.NewSubjectError(domainagg.CodeNotFound, "Lessons.Submission.Get", id.String(), "submission not found", nil)
	}
	return sub, nil
}

func (s *submissionService) List(ctx context.Context, statuses []string, limit, offset int) ([]*types.Submission, error) {
	for _, st := range statuses {
		if !validSubmissionStatus(st) {
			return nil, domainagg.NewError(domainagg.CodeValidation, "Lessons.Submission.List", fmt.Sprintf("unknown status %q", st), nil)
		}
	}
	out, err := s.submissions.ListByStatus(dbctx.New(ctx), statuses, limit, offset)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Lessons.Submission.List", err)
	}
	if out == nil {
		out = []*types.Submission{}
	}
	return out, nil
}

func (s *submissionService) Reviews(ctx context.Context, id uuid.UUID) ([]*types.Review, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	out, err := s.reviews.ListBySubmission(dbctx.New(ctx), id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Lessons.Submission.Reviews", err)
	}
	if out == nil {
		out = []*types.Review{}
	}
	return out, nil
}

func (s *submissionService) StartReview(ctx context.Context, in domainagg.StartReviewInput) (domainagg.StartReviewResult, error) {
	return s.agg.StartReview(ctx, in)
}

// RecordReview snapshots the cached duplicate candidates onto the review when the
// caller did not supply them.
func (s *submissionService) RecordReview(ctx context.Context, in domainagg.RecordReviewInput) (domainagg.RecordReviewResult, error) {
	if in.DetectedDuplicates == nil && s.detector != nil && in.SubmissionID != uuid.Nil {
		candidates, err := s.detector.DetectForSubmission(ctx, in.SubmissionID, dedup.DetectOptions{})
		if err != nil {
			if domainagg.IsCode(err, domainagg.CodeNotFound) {
				return domainagg.RecordReviewResult{}, err
			}
			s.log.Warn("duplicate snapshot unavailable for review", "submission_id", in.SubmissionID, "error", err)
		}
		snaps := make([]types.DuplicateSnapshot, 0, len(candidates))
		for _, c := range candidates {
			snaps = append(snaps, c.Snapshot())
		}
		in.DetectedDuplicates = snaps
	}
	return s.agg.RecordReview(ctx, in)
}

func validSubmissionStatus(st string) bool {
	switch st {
	case types.SubmissionStatusSubmitted, types.SubmissionStatusInReview, types.SubmissionStatusNeedsRevision,
		types.SubmissionStatusApproved, types.SubmissionStatusRejected:
		return true
	}
	return false
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

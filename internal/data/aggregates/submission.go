package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/datatypes"
)

var reviewDecisions = []string{
	types.DecisionApproveNew,
	types.DecisionApproveUpdate,
	types.DecisionReject,
	types.DecisionNeedsRevision,
}

type SubmissionAggregateDeps struct {
	Base BaseDeps

	Submissions repos.SubmissionRepo
	Reviews     repos.ReviewRepo
	Versions    repos.VersionRepo
	Lessons     repos.LessonRepo
	Roles       repos.UserRoleRepo
}

type submissionAggregate struct {
	deps SubmissionAggregateDeps
}

func NewSubmissionAggregate(deps SubmissionAggregateDeps) domainagg.SubmissionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &submissionAggregate{deps: deps}
}

func (a *submissionAggregate) Contract() domainagg.Contract {
	return domainagg.SubmissionAggregateContract
}

func (a *submissionAggregate) configured() bool {
	d := a.deps
	return d.Submissions != nil && d.Reviews != nil && d.Versions != nil && d.Lessons != nil && d.Roles != nil
}

func (a *submissionAggregate) StartReview(ctx context.Context, in domainagg.StartReviewInput) (domainagg.StartReviewResult, error) {
	const op = "Lessons.Submission.StartReview"
	var out domainagg.StartReviewResult
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "submission repos not configured", nil)
	}
	if in.SubmissionID == uuid.Nil || in.ReviewerID == uuid.Nil {
		return out, MapError(op, ValidationError("submission_id and reviewer_id are required"))
	}

	var from string
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := authorize(dbc, a.deps.Roles, op, in.ReviewerID, types.CanResolve); err != nil {
			return err
		}
		sub, err := a.deps.Submissions.LockByID(dbc, in.SubmissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return notFound(op, "submission", in.SubmissionID.String())
		}
		if err := RequireStatusAllowed(sub.Status, types.SubmissionStatusSubmitted, types.SubmissionStatusNeedsRevision); err != nil {
			return err
		}
		from = sub.Status
		reviewer := in.ReviewerID
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "lesson_submission", sub.ID,
			[]string{types.SubmissionStatusSubmitted, types.SubmissionStatusNeedsRevision},
			map[string]any{
				"status":      types.SubmissionStatusInReview,
				"reviewer_id": reviewer,
				"updated_at":  a.deps.Base.now(),
			})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "submission status changed concurrently"); err != nil {
			return err
		}
		out = domainagg.StartReviewResult{SubmissionID: sub.ID, Status: types.SubmissionStatusInReview}
		return nil
	})
	if err == nil {
		observability.Current().IncSubmissionTransition(from, types.SubmissionStatusInReview)
	}
	return out, err
}

func (a *submissionAggregate) RecordReview(ctx context.Context, in domainagg.RecordReviewInput) (domainagg.RecordReviewResult, error) {
	const op = "Lessons.Submission.RecordReview"
	var out domainagg.RecordReviewResult
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "submission repos not configured", nil)
	}
	in.Decision = strings.ToLower(strings.TrimSpace(in.Decision))
	in.Notes = strings.TrimSpace(in.Notes)
	in.Title = strings.TrimSpace(in.Title)
	in.Summary = strings.TrimSpace(in.Summary)
	switch {
	case in.SubmissionID == uuid.Nil || in.ReviewerID == uuid.Nil:
		return out, MapError(op, ValidationError("submission_id and reviewer_id are required"))
	case !types.Valid(in.Decision, reviewDecisions):
		return out, MapError(op, ValidationError(fmt.Sprintf("unknown decision %q", in.Decision)))
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := authorize(dbc, a.deps.Roles, op, in.ReviewerID, types.CanResolve); err != nil {
			return err
		}
		sub, err := a.deps.Submissions.LockByID(dbc, in.SubmissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return notFound(op, "submission", in.SubmissionID.String())
		}
		if err := RequireStatusAllowed(sub.Status, types.SubmissionStatusInReview); err != nil {
			return err
		}

		tagged := sub.Metadata.Data()
		if in.TaggedMetadata != nil {
			tagged = *in.TaggedMetadata
		}
		review := &types.Review{
			SubmissionID:       sub.ID,
			ReviewerID:         in.ReviewerID,
			Decision:           in.Decision,
			DetectedDuplicates: datatypes.JSONSlice[types.DuplicateSnapshot](in.DetectedDuplicates),
			TaggedMetadata:     datatypes.NewJSONType(tagged),
			Notes:              in.Notes,
		}
		if err := a.deps.Reviews.Create(dbc, review); err != nil {
			return err
		}

		now := a.deps.Base.now()
		next := types.SubmissionStatusApproved
		updates := map[string]any{"reviewed_at": now, "updated_at": now}
		res := domainagg.RecordReviewResult{ReviewID: review.ID, SubmissionID: sub.ID}

		switch in.Decision {
		case types.DecisionApproveNew:
			lesson, err := a.publish(dbc, sub, in, tagged)
			if err != nil {
				return err
			}
			updates["published_lesson_id"] = lesson.ID
			res.LessonID = &lesson.ID
			res.VersionNumber = lesson.VersionNumber
		case types.DecisionApproveUpdate:
			lesson, err := a.applyUpdate(dbc, op, sub, in, tagged)
			if err != nil {
				return err
			}
			updates["published_lesson_id"] = lesson.ID
			res.LessonID = &lesson.ID
			res.VersionNumber = lesson.VersionNumber
		case types.DecisionNeedsRevision:
			next = types.SubmissionStatusNeedsRevision
		case types.DecisionReject:
			next = types.SubmissionStatusRejected
		}
		updates["status"] = next

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "lesson_submission", sub.ID,
			[]string{types.SubmissionStatusInReview}, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "submission left review concurrently"); err != nil {
			return err
		}
		res.Status = next
		out = res
		return nil
	})
	if err == nil {
		observability.Current().IncSubmissionTransition(types.SubmissionStatusInReview, out.Status)
	}
	return out, err
}

// publish inserts the submission as a new catalog lesson.
func (a *submissionAggregate) publish(dbc dbctx.Context, sub *types.Submission, in domainagg.RecordReviewInput, tagged types.Attributes) (*types.Lesson, error) {
	title := firstNonEmpty(in.Title, sub.ExtractedTitle)
	if title == "" {
		return nil, ValidationError("published lesson needs a title")
	}
	grades := in.GradeLevels
	if len(grades) == 0 {
		grades = sub.GradeLevels
	}
	l := &types.Lesson{
		ID:          uuid.New(),
		Title:       title,
		Summary:     in.Summary,
		FileLink:    sub.DocumentRef,
		GradeLevels: datatypes.JSONSlice[string](types.UnionStrings(grades)),
		ContentText: sub.ExtractedBody,
		ContentHash: sub.ContentHash,
		Embedding:   sub.Embedding,
	}
	l.SetAttrs(tagged)
	if _, err := a.deps.Lessons.Create(dbc, []*types.Lesson{l}); err != nil {
		return nil, err
	}
	return l, nil
}

// applyUpdate snapshots the current lesson as a version and overwrites it with the submission.
func (a *submissionAggregate) applyUpdate(dbc dbctx.Context, op string, sub *types.Submission, in domainagg.RecordReviewInput, tagged types.Attributes) (*types.Lesson, error) {
	if sub.OriginalLessonID == nil || *sub.OriginalLessonID == uuid.Nil {
		return nil, ValidationError("approve_update requires a submission that targets an existing lesson")
	}
	locked, err := a.deps.Lessons.LockByIDs(dbc, []uuid.UUID{*sub.OriginalLessonID})
	if err != nil {
		return nil, err
	}
	l := locked[*sub.OriginalLessonID]
	if l == nil {
		return nil, notFound(op, "lesson", sub.OriginalLessonID.String())
	}

	subID := sub.ID
	if err := a.deps.Versions.Create(dbc, types.NewVersionSnapshot(l, &subID)); err != nil {
		return nil, err
	}
	now := a.deps.Base.now()
	expected := l.VersionNumber
	ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, "lesson", "version_number", l.ID, expected,
		map[string]any{"has_versions": true, "updated_at": now})
	if err != nil {
		return nil, err
	}
	if err := RequireCASSuccess(ok, "lesson version changed concurrently"); err != nil {
		return nil, err
	}

	l.VersionNumber = expected + 1
	l.HasVersions = true
	l.Title = firstNonEmpty(in.Title, sub.ExtractedTitle, l.Title)
	if in.Summary != "" {
		l.Summary = in.Summary
	}
	if len(in.GradeLevels) > 0 {
		l.GradeLevels = in.GradeLevels
	} else if len(sub.GradeLevels) > 0 {
		l.GradeLevels = sub.GradeLevels
	}
	if strings.TrimSpace(sub.ExtractedBody) != "" {
		l.ContentText = sub.ExtractedBody
		l.ContentHash = sub.ContentHash
		l.Embedding = sub.Embedding
	}
	if sub.DocumentRef != "" {
		l.FileLink = sub.DocumentRef
	}
	l.UpdatedAt = now
	l.SetAttrs(tagged)
	if err := a.deps.Lessons.Save(dbc, l); err != nil {
		return nil, err
	}
	return l, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/http/response"
	"github.com/yungbote/lessonbank-backend/internal/services"
)

type SubmissionHandler struct {
	svc  services.SubmissionService
	dups services.DuplicateService
}

func NewSubmissionHandler(svc services.SubmissionService, dups services.DuplicateService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, dups: dups}
}

// POST /api/submissions
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req services.CreateSubmissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	req.SubmittedBy = uid
	out, err := h.svc.CreateSubmission(c.Request.Context(), req)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// GET /api/submissions?status=submitted,in_review
func (h *SubmissionHandler) List(c *gin.Context) {
	var statuses []string
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			statuses = append(statuses, s)
		}
	}
	subs, err := h.svc.List(c.Request.Context(), statuses, queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submissions": subs})
}

// GET /api/submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_submission_id")
	if !ok {
		return
	}
	sub, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub})
}

// GET /api/submissions/:id/reviews
func (h *SubmissionHandler) Reviews(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_submission_id")
	if !ok {
		return
	}
	reviews, err := h.svc.Reviews(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reviews": reviews})
}

// GET /api/submissions/:id/duplicates?refresh=true
func (h *SubmissionHandler) Duplicates(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_submission_id")
	if !ok {
		return
	}
	refresh := c.Query("refresh") == "true" || c.Query("refresh") == "1"
	out, err := h.dups.CandidatesForSubmission(c.Request.Context(), id, refresh)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"duplicates": out})
}

// POST /api/submissions/:id/start-review
func (h *SubmissionHandler) StartReview(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_submission_id")
	if !ok {
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	out, err := h.svc.StartReview(c.Request.Context(), domainagg.StartReviewInput{SubmissionID: id, ReviewerID: uid})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, out)
}

type reviewRequest struct {
	Decision           string                    `json:"decision"`
	Notes              string                    `json:"notes"`
	TaggedMetadata     *types.Attributes         `json:"tagged_metadata,omitempty"`
	GradeLevels        []string                  `json:"grade_levels,omitempty"`
	DetectedDuplicates []types.DuplicateSnapshot `json:"detected_duplicates,omitempty"`
	Title              string                    `json:"title,omitempty"`
	Summary            string                    `json:"summary,omitempty"`
}

// POST /api/submissions/:id/review
func (h *SubmissionHandler) RecordReview(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_submission_id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	out, err := h.svc.RecordReview(c.Request.Context(), domainagg.RecordReviewInput{
		SubmissionID:       id,
		ReviewerID:         uid,
		Decision:           req.Decision,
		Notes:              req.Notes,
		TaggedMetadata:     req.TaggedMetadata,
		GradeLevels:        req.GradeLevels,
		DetectedDuplicates: req.DetectedDuplicates,
		Title:              req.Title,
		Summary:            req.Summary,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, out)
}

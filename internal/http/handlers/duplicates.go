package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/http/response"
	"github.com/yungbote/lessonbank-backend/internal/platform/apierr"
	"github.com/yungbote/lessonbank-backend/internal/services"
)

type DuplicateHandler struct {
	svc services.DuplicateService
}

func NewDuplicateHandler(svc services.DuplicateService) *DuplicateHandler {
	return &DuplicateHandler{svc: svc}
}

type resolveRequest struct {
	GroupID         string               `json:"group_id"`
	CanonicalID     uuid.UUID            `json:"canonical_id"`
	DuplicateIDs    []uuid.UUID          `json:"duplicate_ids"`
	DuplicateType   string               `json:"duplicate_type"`
	SimilarityScore float64              `json:"similarity_score"`
	MergeMetadata   bool                 `json:"merge_metadata"`
	Notes           string               `json:"notes"`
	Mode            string               `json:"resolution_mode"`
	SubGroupName    string               `json:"sub_group_name"`
	ParentGroupID   string               `json:"parent_group_id"`
	TitleUpdates    map[uuid.UUID]string `json:"title_updates"`
}

// POST /api/duplicate-groups/resolve
func (h *DuplicateHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	out := h.svc.ResolveDuplicateGroup(c.Request.Context(), domainagg.ResolveDuplicateGroupInput{
		GroupID:         req.GroupID,
		CanonicalID:     req.CanonicalID,
		DuplicateIDs:    req.DuplicateIDs,
		DuplicateType:   req.DuplicateType,
		SimilarityScore: req.SimilarityScore,
		MergeMetadata:   req.MergeMetadata,
		Notes:           req.Notes,
		Mode:            req.Mode,
		SubGroupName:    req.SubGroupName,
		ParentGroupID:   req.ParentGroupID,
		TitleUpdates:    req.TitleUpdates,
		ResolvedBy:      uid,
	})
	if !out.Success {
		if apierr.StatusFor(out.ErrorCode) == http.StatusInternalServerError {
			out.Detail = ""
		}
		c.JSON(apierr.StatusFor(out.ErrorCode), out)
		return
	}
	response.RespondOK(c, out)
}

type linkRequest struct {
	DuplicateID     uuid.UUID `json:"duplicate_id"`
	CanonicalID     uuid.UUID `json:"canonical_id"`
	SimilarityScore float64   `json:"similarity_score"`
	ResolutionType  string    `json:"resolution_type"`
}

// POST /api/canonical-links
func (h *DuplicateHandler) LinkCanonical(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	out, err := h.svc.LinkCanonical(c.Request.Context(), domainagg.LinkCanonicalInput{
		DuplicateID:     req.DuplicateID,
		CanonicalID:     req.CanonicalID,
		SimilarityScore: req.SimilarityScore,
		ResolutionType:  req.ResolutionType,
		ResolvedBy:      uid,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, out)
}

// DELETE /api/archives/:id
func (h *DuplicateHandler) DeleteArchive(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_archive_id")
	if !ok {
		return
	}
	uid, ok := actorID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteArchive(c.Request.Context(), domainagg.DeleteArchiveInput{ArchiveID: id, DeletedBy: uid}); err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/lessons/:id/duplicates
func (h *DuplicateHandler) LessonDuplicates(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_lesson_id")
	if !ok {
		return
	}
	out, err := h.svc.CandidatesForLesson(c.Request.Context(), id)
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"duplicates": out})
}

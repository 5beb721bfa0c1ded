package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/http/response"
	"github.com/yungbote/lessonbank-backend/internal/modules/search"
	"github.com/yungbote/lessonbank-backend/internal/services"
)

type SearchHandler struct {
	svc services.SearchService
}

func NewSearchHandler(svc services.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req search.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, res)
}

type facetRequest struct {
	Query   string           `json:"query"`
	Filters search.FilterSet `json:"filters"`
	Facet   string           `json:"facet"`
	Limit   int              `json:"limit"`
}

// POST /api/search/facets
func (h *SearchHandler) Facets(c *gin.Context) {
	var req facetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	facet := types.Facet(strings.TrimSpace(req.Facet))
	if !facet.Valid() {
		response.RespondError(c, http.StatusBadRequest, "invalid_facet", fmt.Errorf("unknown facet %q", req.Facet))
		return
	}
	counts, err := h.svc.Facets(c.Request.Context(), req.Query, req.Filters, facet, req.Limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "facets_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"facet": facet, "counts": counts})
}

// POST /api/vocabulary/reload
func (h *SearchHandler) ReloadVocabulary(c *gin.Context) {
	h.svc.ReloadVocabulary()
	c.Status(http.StatusNoContent)
}

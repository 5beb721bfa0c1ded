package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultFacetMax = 50
)

type SearchRequest struct {
	Query      string    `json:"query"`
	Filters    FilterSet `json:"filters"`
	PageSize   int       `json:"page_size"`
	PageOffset int       `json:"page_offset"`
}

type SearchResult struct {
	Rows       []repos.SearchHit `json:"rows"`
	TotalCount int64             `json:"total_count"`
	PageSize   int               `json:"page_size"`
	PageOffset int               `json:"page_offset"`
	Expression string            `json:"expression,omitempty"`
}

type Metrics interface {
	ObserveSearch(status string, dur time.Duration, total int64)
}

type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Engine turns a SearchRequest into an expanded LessonQuery and runs it.
type Engine struct {
	repo    repos.SearchRepo
	vocab   vocabulary.Lookup
	cfg     Config
	log     *logger.Logger
	metrics Metrics
}

func NewEngine(repo repos.SearchRepo, vocab vocabulary.Lookup, cfg Config, log *logger.Logger, metrics Metrics) *Engine {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
	return &Engine{repo: repo, vocab: vocab, cfg: cfg, log: log.With("module", "SearchEngine"), metrics: metrics}
}

// Search returns one ranked page and the total match count for the same predicate.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	start := time.Now()
	limit, offset := e.page(req.PageSize, req.PageOffset)
	ctx, span := observability.StartSpan(ctx, "search.Search",
		attribute.Int("search.page_size", limit),
		attribute.Int("search.page_offset", offset),
		attribute.Bool("search.has_query", strings.TrimSpace(req.Query) != ""),
	)

	q := e.buildQuery(ctx, req.Query, req.Filters)
	rows, total, err := e.repo.Search(dbctx.New(ctx), q, limit, offset)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if e.metrics != nil {
		e.metrics.ObserveSearch(status, time.Since(start), total)
	}
	if err != nil {
		observability.EndSpan(span, err)
		e.log.Error("search failed", "error", err)
		return SearchResult{}, fmt.Errorf("search lessons: %w", err)
	}
	span.SetAttributes(attribute.Int64("search.total_count", total))
	observability.EndSpan(span, nil)
	if rows == nil {
		rows = []repos.SearchHit{}
	}
	return SearchResult{
		Rows:       rows,
		TotalCount: total,
		PageSize:   limit,
		PageOffset: offset,
		Expression: q.Expression,
	}, nil
}

// Facets counts matching lessons per value of one facet under the same predicate as Search.
func (e *Engine) Facets(ctx context.Context, query string, filters FilterSet, facet types.Facet, limit int) ([]repos.FacetCount, error) {
	if !facet.Valid() {
		return nil, fmt.Errorf("unknown facet %q", facet)
	}
	if limit <= 0 || limit > DefaultFacetMax*4 {
		limit = DefaultFacetMax
	}
	ctx, span := observability.StartSpan(ctx, "search.Facets", attribute.String("search.facet", string(facet)))
	out, err := e.repo.Facets(dbctx.New(ctx), e.buildQuery(ctx, query, filters), facet, limit)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("facet counts: %w", err)
	}
	return out, nil
}

func (e *Engine) page(size, offset int) (int, int) {
	if size <= 0 {
		size = e.cfg.DefaultPageSize
	}
	if size > e.cfg.MaxPageSize {
		size = e.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return size, offset
}

// buildQuery applies vocabulary expansion. An unavailable vocabulary degrades to
// the literal query and unexpanded filters.
func (e *Engine) buildQuery(ctx context.Context, query string, filters FilterSet) repos.LessonQuery {
	var snap *vocabulary.Snapshot
	if e.vocab != nil {
		s, err := e.vocab.Snapshot(ctx)
		if err != nil {
			e.log.Warn("vocabulary unavailable; searching without expansion", "error", err)
		} else {
			snap = s
		}
	}
	q := repos.LessonQuery{Filters: filters.Facets(snap)}
	raw := strings.TrimSpace(query)
	if raw == "" {
		return q
	}
	if expr, ok := snap.ExpandSynonyms(raw); ok {
		q.Expression = expr
		q.Raw = raw
	}
	return q
}

package services

import (
	"context"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/search"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type SearchService interface {
	Search(ctx context.Context, req search.SearchRequest) (search.SearchResult, error)
	Facets(ctx context.Context, query string, filters search.FilterSet, facet types.Facet, limit int) ([]repos.FacetCount, error)
	// ReloadVocabulary drops the cached vocabulary so the next search reads it fresh.
	ReloadVocabulary()
}

type searchService struct {
	log    *logger.Logger
	engine *search.Engine
	vocab  *vocabulary.Provider
}

func NewSearchService(log *logger.Logger, engine *search.Engine, vocab *vocabulary.Provider) SearchService {
	return &searchService{log: log.With("service", "SearchService"), engine: engine, vocab: vocab}
}

func (s *searchService) Search(ctx context.Context, req search.SearchRequest) (search.SearchResult, error) {
	return s.engine.Search(ctx, req)
}

func (s *searchService) Facets(ctx context.Context, query string, filters search.FilterSet, facet types.Facet, limit int) ([]repos.FacetCount, error) {
	return s.engine.Facets(ctx, query, filters, facet, limit)
}

func (s *searchService) ReloadVocabulary() {
	if s.vocab == nil {
		return
	}
	s.vocab.Invalidate()
	s.log.Info("vocabulary invalidated")
}

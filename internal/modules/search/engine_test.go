package search

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type fakeSearchRepo struct {
	lastQuery  repos.LessonQuery
	lastLimit  int
	lastOffset int
	rows       []repos.SearchHit
	total      int64
	err        error
}

func (f *fakeSearchRepo) Search(_ dbctx.Context, q repos.LessonQuery, limit, offset int) ([]repos.SearchHit, int64, error) {
	f.lastQuery, f.lastLimit, f.lastOffset = q, limit, offset
	return f.rows, f.total, f.err
}

func (f *fakeSearchRepo) Facets(_ dbctx.Context, q repos.LessonQuery, _ types.Facet, _ int) ([]repos.FacetCount, error) {
	f.lastQuery = q
	return []repos.FacetCount{{Value: "Japanese", Count: 2}}, f.err
}

type failingLookup struct{}

func (failingLookup) Snapshot(context.Context) (*vocabulary.Snapshot, error) {
	return nil, errors.New("db down")
}

type recordSearch struct{ statuses []string }

func (r *recordSearch) ObserveSearch(status string, _ time.Duration, _ int64) {
	r.statuses = append(r.statuses, status)
}

func testVocab() vocabulary.Lookup {
	return vocabulary.Static{Snap: vocabulary.NewSnapshot(
		[]vocabulary.Entry{{Term: "tomato", Type: types.SynonymBidirectional, Synonyms: []string{"tomatoes"}}},
		[]vocabulary.Node{{Parent: "Asian", Children: []string{"Japanese", "Korean"}}},
	)}
}

func TestSearchExpandsQueryAndHeritage(t *testing.T) {
	repo := &fakeSearchRepo{total: 1, rows: []repos.SearchHit{{Title: "Tomato Salsa"}}}
	e := NewEngine(repo, testVocab(), Config{}, logger.Nop(), nil)

	res, err := e.Search(context.Background(), SearchRequest{
		Query:   "tomato",
		Filters: FilterSet{CulturalHeritage: []string{"Asian"}, GradeLevels: []string{"3", " "}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalCount != 1 || len(res.Rows) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if repo.lastQuery.Expression != "tomato OR tomatoes" || repo.lastQuery.Raw != "tomato" {
		t.Fatalf("unexpected query %+v", repo.lastQuery)
	}
	if got := repo.lastQuery.Filters[types.FacetCulturalHeritage]; !reflect.DeepEqual(got, []string{"Asian", "Japanese", "Korean"}) {
		t.Fatalf("unexpected heritage: %v", got)
	}
	if got := repo.lastQuery.Filters[types.FacetGradeLevels]; !reflect.DeepEqual(got, []string{"3"}) {
		t.Fatalf("blank grade must be dropped: %v", got)
	}
}

func TestSearchClampsPaging(t *testing.T) {
	repo := &fakeSearchRepo{}
	e := NewEngine(repo, testVocab(), Config{}, logger.Nop(), nil)
	cases := []struct {
		size, offset       int
		wantSize, wantOffs int
	}{
		{0, 0, DefaultPageSize, 0},
		{500, -5, MaxPageSize, 0},
		{7, 14, 7, 14},
	}
	for _, tc := range cases {
		res, err := e.Search(context.Background(), SearchRequest{PageSize: tc.size, PageOffset: tc.offset})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if repo.lastLimit != tc.wantSize || repo.lastOffset != tc.wantOffs || res.PageSize != tc.wantSize {
			t.Fatalf("size=%d offset=%d: got limit=%d offset=%d", tc.size, tc.offset, repo.lastLimit, repo.lastOffset)
		}
	}
}

func TestSearchEmptyQueryIsNoKeyword(t *testing.T) {
	repo := &fakeSearchRepo{}
	e := NewEngine(repo, testVocab(), Config{}, logger.Nop(), nil)
	res, err := e.Search(context.Background(), SearchRequest{Query: "   "})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.lastQuery.Expression != "" || len(repo.lastQuery.Filters) != 0 {
		t.Fatalf("expected unfiltered query, got %+v", repo.lastQuery)
	}
	if res.Rows == nil || res.TotalCount != 0 {
		t.Fatalf("expected empty non-nil rows, got %+v", res)
	}
}

func TestSearchDegradesWithoutVocabulary(t *testing.T) {
	repo := &fakeSearchRepo{}
	e := NewEngine(repo, failingLookup{}, Config{}, logger.Nop(), nil)
	if _, err := e.Search(context.Background(), SearchRequest{Query: "tomato", Filters: FilterSet{CulturalHeritage: []string{"Asian"}}}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if repo.lastQuery.Expression != "tomato" {
		t.Fatalf("expected literal query, got %q", repo.lastQuery.Expression)
	}
	if got := repo.lastQuery.Filters[types.FacetCulturalHeritage]; !reflect.DeepEqual(got, []string{"Asian"}) {
		t.Fatalf("expected unexpanded heritage, got %v", got)
	}
}

func TestSearchErrorIsReported(t *testing.T) {
	m := &recordSearch{}
	repo := &fakeSearchRepo{err: errors.New("boom")}
	e := NewEngine(repo, testVocab(), Config{}, logger.Nop(), m)
	if _, err := e.Search(context.Background(), SearchRequest{Query: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(m.statuses) != 1 || m.statuses[0] != "error" {
		t.Fatalf("unexpected metrics %v", m.statuses)
	}
}

func TestFacetsRejectsUnknownFacet(t *testing.T) {
	e := NewEngine(&fakeSearchRepo{}, testVocab(), Config{}, logger.Nop(), nil)
	if _, err := e.Facets(context.Background(), "", FilterSet{}, types.Facet("nope"), 10); err == nil {
		t.Fatalf("expected error")
	}
	out, err := e.Facets(context.Background(), "", FilterSet{}, types.FacetCulturalHeritage, 10)
	if err != nil || len(out) != 1 {
		t.Fatalf("Facets: %v %v", out, err)
	}
}

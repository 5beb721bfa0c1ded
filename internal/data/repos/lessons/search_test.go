package lessons

import (
	"reflect"
	"strings"
	"testing"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
)

func TestCountAndPageSharePredicate(t *testing.T) {
	q := LessonQuery{
		Expression: `tomato OR "cherry tomato"`,
		Raw:        "tomato",
		Filters: map[types.Facet][]string{
			types.FacetGradeLevels:      {"3", "4"},
			types.FacetCulturalHeritage: {"Asian", "Japanese"},
			types.FacetLessonFormat:     {"Single period"},
		},
	}
	pred := BuildPredicate(q)
	count := CountStatement(pred)
	page := PageStatement(pred, q, 20, 40)

	if !strings.HasSuffix(count.SQL, "WHERE "+pred.SQL) {
		t.Fatalf("count statement does not end with predicate:\n%s", count.SQL)
	}
	if !strings.Contains(page.SQL, " WHERE "+pred.SQL+" ORDER BY ") {
		t.Fatalf("page statement does not embed predicate verbatim:\n%s", page.SQL)
	}
	if !reflect.DeepEqual(count.Args, pred.Args) {
		t.Fatalf("count args drifted: %v vs %v", count.Args, pred.Args)
	}
	// page args are rank args, then predicate args, then limit/offset.
	mid := page.Args[3 : len(page.Args)-2]
	if !reflect.DeepEqual(mid, pred.Args) {
		t.Fatalf("page predicate args drifted: %v vs %v", mid, pred.Args)
	}
	if got := page.Args[len(page.Args)-2:]; got[0] != 20 || got[1] != 40 {
		t.Fatalf("limit/offset args: %v", got)
	}
}

func TestBuildPredicateIsDeterministic(t *testing.T) {
	q := LessonQuery{Filters: map[types.Facet][]string{
		types.FacetSkills:        {"knife skills"},
		types.FacetGradeLevels:   {"5"},
		types.FacetCookingMethod: {"Raw"},
		types.FacetSeasonTiming:  {"Fall"},
	}}
	first := BuildPredicate(q).SQL
	for i := 0; i < 20; i++ {
		if got := BuildPredicate(q).SQL; got != first {
			t.Fatalf("predicate changed between calls:\n%s\n%s", first, got)
		}
	}
}

func TestEmptyFiltersAreNoOps(t *testing.T) {
	base := BuildPredicate(LessonQuery{})
	withEmpty := BuildPredicate(LessonQuery{Filters: map[types.Facet][]string{
		types.FacetGradeLevels:        {},
		types.FacetThematicCategories: {"", "  "},
		types.FacetLessonFormat:       nil,
	}})
	if base.SQL != withEmpty.SQL || len(withEmpty.Args) != 0 {
		t.Fatalf("empty filters changed predicate: %q args=%v", withEmpty.SQL, withEmpty.Args)
	}
	if base.SQL != "TRUE" {
		t.Fatalf("unfiltered predicate: %q", base.SQL)
	}
}

func TestPageStatementWithoutQueryRanksZero(t *testing.T) {
	pred := BuildPredicate(LessonQuery{})
	page := PageStatement(pred, LessonQuery{}, 10, 0)
	if !strings.Contains(page.SQL, "0::float8 AS rank") {
		t.Fatalf("expected constant rank:\n%s", page.SQL)
	}
	if strings.Contains(page.SQL, "websearch_to_tsquery") {
		t.Fatalf("no keyword predicate expected:\n%s", page.SQL)
	}
	if !strings.Contains(page.SQL, "ORDER BY rank DESC, lesson.confidence_overall DESC, lesson.title ASC, lesson.id ASC") {
		t.Fatalf("ordering missing:\n%s", page.SQL)
	}
}

func TestFacetStatementRejectsUnknownFacet(t *testing.T) {
	if _, err := FacetStatement(BuildPredicate(LessonQuery{}), types.Facet("metadata; drop table lesson"), 10); err == nil {
		t.Fatalf("expected unknown facet error")
	}
	stmt, err := FacetStatement(BuildPredicate(LessonQuery{}), types.FacetLessonFormat, 10)
	if err != nil {
		t.Fatalf("scalar facet: %v", err)
	}
	if !strings.Contains(stmt.SQL, "GROUP BY lesson.lesson_format") {
		t.Fatalf("scalar facet sql: %s", stmt.SQL)
	}
	stmt, err = FacetStatement(BuildPredicate(LessonQuery{}), types.FacetCookingMethod, 10)
	if err != nil {
		t.Fatalf("cooking facet: %v", err)
	}
	if !strings.Contains(stmt.SQL, "jsonb_array_elements_text(lesson.cooking_method)") {
		t.Fatalf("cooking methods must be counted per element: %s", stmt.SQL)
	}
}

func TestCookingMethodFilterMatchesElements(t *testing.T) {
	pred := BuildPredicate(LessonQuery{Filters: map[types.Facet][]string{
		types.FacetCookingMethod: {"Baking"},
	}})
	want := "EXISTS (SELECT 1 FROM jsonb_array_elements_text(lesson.cooking_method) AS fv(v) WHERE fv.v IN ?)"
	if pred.SQL != want {
		t.Fatalf("cooking method predicate:\n%s", pred.SQL)
	}
	if len(pred.Args) != 1 || !reflect.DeepEqual(pred.Args[0], []string{"Baking"}) {
		t.Fatalf("args: %v", pred.Args)
	}
}

package dedup

import (
	"math"
	"testing"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
)

func TestTier(t *testing.T) {
	cases := map[float64]string{
		1:     types.MatchExact,
		0.95:  types.MatchExact,
		0.949: types.MatchHigh,
		0.85:  types.MatchHigh,
		0.70:  types.MatchMedium,
		0.69:  types.MatchLow,
		0:     types.MatchLow,
	}
	for sim, want := range cases {
		if got := Tier(sim); got != want {
			t.Fatalf("Tier(%v)=%s want %s", sim, got, want)
		}
	}
}

func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("Tomato Salsa", "tomato salsa!"); got != 1 {
		t.Fatalf("case and punctuation must not matter, got %v", got)
	}
	if got := TrigramSimilarity("abc", "xyz"); got != 0 {
		t.Fatalf("disjoint words should score 0, got %v", got)
	}
	// pg_trgm: "cat" -> {"  c"," ca","cat","at "}, "cats" -> {"  c"," ca","cat","ats","ts "}.
	got := TrigramSimilarity("cat", "cats")
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if TrigramSimilarity("", "x") != 0 {
		t.Fatalf("empty input should score 0")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := CosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Fatalf("length mismatch must score 0: %v", got)
	}
}

func TestCompositeAndAttributeOverlap(t *testing.T) {
	if got := Composite(1, 1, 1); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := Composite(1, 0, 0); math.Abs(got-WeightTitle) > 1e-9 {
		t.Fatalf("expected title weight, got %v", got)
	}

	a := &types.Lesson{}
	a.GradeLevels = []string{"3", "4"}
	a.SetAttrs(types.Attributes{CulturalHeritage: []string{"Japanese"}})
	b := &types.Lesson{}
	b.GradeLevels = []string{"4"}
	b.SetAttrs(types.Attributes{CulturalHeritage: []string{"japanese"}, Tags: []string{"soup"}})

	// grades 1/2, heritage 1, tags 0 -> mean 0.5
	if got := AttributeOverlap(a, b); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := AttributeOverlap(&types.Lesson{}, &types.Lesson{}); got != 0 {
		t.Fatalf("no facets should score 0, got %v", got)
	}
}

func TestTokenJaccard(t *testing.T) {
	if got := TokenJaccard("Mix  the flour", "mix THE flour"); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := TokenJaccard("a b", "c d"); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

package dedup

import (
	"math"
	"strings"
	"unicode"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
)

const (
	WeightTitle      = 0.35
	WeightContent    = 0.45
	WeightAttributes = 0.20

	TierExact  = 0.95
	TierHigh   = 0.85
	TierMedium = 0.70
)

// Tier buckets a similarity in [0,1] into a match type.
func Tier(sim float64) string {
	switch {
	case sim >= TierExact:
		return types.MatchExact
	case sim >= TierHigh:
		return types.MatchHigh
	case sim >= TierMedium:
		return types.MatchMedium
	default:
		return types.MatchLow
	}
}

// Composite weighs the three component scores and clamps to [0,1].
func Composite(title, content, attributes float64) float64 {
	return clamp01(WeightTitle*title + WeightContent*content + WeightAttributes*attributes)
}

// TrigramSimilarity follows pg_trgm: each alphanumeric word is lowercased and padded
// with two leading and one trailing space, and the score is the Jaccard of the trigram sets.
func TrigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if _, ok := tb[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

func trigrams(s string) map[string]struct{} {
	out := map[string]struct{}{}
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			out[string(padded[i:i+3])] = struct{}{}
		}
	}
	return out
}

// CosineSimilarity returns the cosine of two equal-length vectors, 0 otherwise.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// TokenJaccard compares the word sets of two normalized bodies.
func TokenJaccard(a, b string) float64 {
	return types.Jaccard(strings.Fields(fingerprint.Normalize(a)), strings.Fields(fingerprint.Normalize(b)))
}

// AttributeOverlap is the mean Jaccard over facets that are non-empty on either side.
func AttributeOverlap(a, b *types.Lesson) float64 {
	if a == nil || b == nil {
		return 0
	}
	facets := append(append([]types.Facet{}, types.ArrayFacets...), types.ScalarFacets...)
	sum, n := 0.0, 0
	for _, f := range facets {
		va, vb := a.FacetValues(f), b.FacetValues(f)
		if len(va) == 0 && len(vb) == 0 {
			continue
		}
		sum += types.Jaccard(va, vb)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

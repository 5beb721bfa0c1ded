package lessons

import (
	"encoding/json"
	"sort"
	"strings"
)

// Attributes is the structured tag document attached to a lesson.
// Known categories are typed; unrecognized keys are carried in Extensions
// and written back unchanged.
type Attributes struct {
	ThematicCategories      []string `json:"thematicCategories,omitempty"`
	SeasonTiming            []string `json:"seasonTiming,omitempty"`
	CoreCompetencies        []string `json:"coreCompetencies,omitempty"`
	CulturalHeritage        []string `json:"culturalHeritage,omitempty"`
	LocationRequirements    []string `json:"locationRequirements,omitempty"`
	ActivityType            []string `json:"activityType,omitempty"`
	LessonFormat            string   `json:"lessonFormat,omitempty"`
	AcademicIntegration     []string `json:"academicIntegration,omitempty"`
	SocialEmotionalLearning []string `json:"socialEmotionalLearning,omitempty"`
	CookingMethods          []string `json:"cookingMethods,omitempty"`
	MainIngredients         []string `json:"mainIngredients,omitempty"`
	Skills                  []string `json:"skills,omitempty"`
	Tags                    []string `json:"tags,omitempty"`
	Observances             []string `json:"observances,omitempty"`

	Extensions map[string]json.RawMessage `json:"-"`
}

type attributesAlias Attributes

var knownAttributeKeys = map[string]struct{}{
	"thematicCategories": {}, "seasonTiming": {}, "coreCompetencies": {}, "culturalHeritage": {},
	"locationRequirements": {}, "activityType": {}, "lessonFormat": {}, "academicIntegration": {},
	"socialEmotionalLearning": {}, "cookingMethods": {}, "mainIngredients": {}, "skills": {},
	"tags": {}, "observances": {},
}

func (a *Attributes) UnmarshalJSON(b []byte) error {
	var known attributesAlias
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k := range knownAttributeKeys {
		delete(raw, k)
	}
	*a = Attributes(known)
	if len(raw) > 0 {
		a.Extensions = raw
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(attributesAlias(a))
	if err != nil || len(a.Extensions) == 0 {
		return b, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Extensions {
		if _, clash := knownAttributeKeys[k]; clash {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Facet names a filterable lesson attribute backed by its own column.
type Facet string

const (
	FacetGradeLevels             Facet = "grade_levels"
	FacetThematicCategories      Facet = "thematic_categories"
	FacetSeasonTiming            Facet = "season_timing"
	FacetCoreCompetencies        Facet = "core_competencies"
	FacetCulturalHeritage        Facet = "cultural_heritage"
	FacetLocationRequirements    Facet = "location_requirements"
	FacetActivityType            Facet = "activity_type"
	FacetLessonFormat            Facet = "lesson_format"
	FacetAcademicIntegration     Facet = "academic_integration"
	FacetSocialEmotionalLearning Facet = "social_emotional_learning"
	FacetCookingMethod           Facet = "cooking_method"
	FacetMainIngredients         Facet = "main_ingredients"
	FacetSkills                  Facet = "skills"
	FacetTags                    Facet = "tags"
)

// ArrayFacets are stored as jsonb arrays and filtered by set overlap.
var ArrayFacets = []Facet{
	FacetGradeLevels, FacetThematicCategories, FacetSeasonTiming, FacetCoreCompetencies,
	FacetCulturalHeritage, FacetLocationRequirements, FacetActivityType, FacetAcademicIntegration,
	FacetSocialEmotionalLearning, FacetCookingMethod, FacetMainIngredients, FacetSkills, FacetTags,
}

// ScalarFacets are single text columns filtered by exact match.
var ScalarFacets = []Facet{FacetLessonFormat}

func (f Facet) Valid() bool {
	for _, x := range ArrayFacets {
		if x == f {
			return true
		}
	}
	for _, x := range ScalarFacets {
		if x == f {
			return true
		}
	}
	return false
}

func (f Facet) IsArray() bool {
	for _, x := range ArrayFacets {
		if x == f {
			return true
		}
	}
	return false
}

// Confidence is the extraction confidence document for a lesson.
type Confidence struct {
	Overall float64 `json:"overall"`
	Title   float64 `json:"title,omitempty"`
	Summary float64 `json:"summary,omitempty"`
	Tags    float64 `json:"tags,omitempty"`
}

// UnionStrings returns the distinct trimmed elements of all inputs in first-seen order.
func UnionStrings(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Jaccard is |a∩b| / |a∪b| over case-folded sets; 0 when both are empty.
func Jaccard(a, b []string) float64 {
	sa := foldSet(a)
	sb := foldSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for k := range sa {
		if _, ok := sb[k]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func foldSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// SortedCopy returns a sorted copy of in.
func SortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

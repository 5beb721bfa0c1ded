package search

import (
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
)

// FilterSet is the user-facing facet filter. Array facets match when any stored
// element equals a filter value; LessonFormat matches exactly.
type FilterSet struct {
	GradeLevels             []string `json:"grade_levels,omitempty" form:"grade_levels"`
	ThematicCategories      []string `json:"thematic_categories,omitempty" form:"thematic_categories"`
	SeasonTiming            []string `json:"season_timing,omitempty" form:"season_timing"`
	CoreCompetencies        []string `json:"core_competencies,omitempty" form:"core_competencies"`
	CulturalHeritage        []string `json:"cultural_heritage,omitempty" form:"cultural_heritage"`
	LocationRequirements    []string `json:"location_requirements,omitempty" form:"location_requirements"`
	ActivityType            []string `json:"activity_type,omitempty" form:"activity_type"`
	LessonFormat            []string `json:"lesson_format,omitempty" form:"lesson_format"`
	AcademicIntegration     []string `json:"academic_integration,omitempty" form:"academic_integration"`
	SocialEmotionalLearning []string `json:"social_emotional_learning,omitempty" form:"social_emotional_learning"`
	CookingMethod           []string `json:"cooking_method,omitempty" form:"cooking_method"`
	MainIngredients         []string `json:"main_ingredients,omitempty" form:"main_ingredients"`
	Skills                  []string `json:"skills,omitempty" form:"skills"`
	Tags                    []string `json:"tags,omitempty" form:"tags"`
}

// Facets maps the filter onto facet columns, expanding cultural heritage through
// the hierarchy. Blank values are dropped and empty facets omitted.
func (f FilterSet) Facets(snap *vocabulary.Snapshot) map[types.Facet][]string {
	heritage := f.CulturalHeritage
	if snap != nil {
		heritage = snap.ExpandHierarchy(heritage)
	}
	raw := map[types.Facet][]string{
		types.FacetGradeLevels:             f.GradeLevels,
		types.FacetThematicCategories:      f.ThematicCategories,
		types.FacetSeasonTiming:            f.SeasonTiming,
		types.FacetCoreCompetencies:        f.CoreCompetencies,
		types.FacetCulturalHeritage:        heritage,
		types.FacetLocationRequirements:    f.LocationRequirements,
		types.FacetActivityType:            f.ActivityType,
		types.FacetLessonFormat:            f.LessonFormat,
		types.FacetAcademicIntegration:     f.AcademicIntegration,
		types.FacetSocialEmotionalLearning: f.SocialEmotionalLearning,
		types.FacetCookingMethod:           f.CookingMethod,
		types.FacetMainIngredients:         f.MainIngredients,
		types.FacetSkills:                  f.Skills,
		types.FacetTags:                    f.Tags,
	}
	out := map[types.Facet][]string{}
	for facet, vals := range raw {
		if clean := types.UnionStrings(vals); len(clean) > 0 {
			out[facet] = clean
		}
	}
	return out
}

func (f FilterSet) Empty() bool {
	return len(f.Facets(nil)) == 0
}

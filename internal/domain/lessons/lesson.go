package lessons

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmbeddingDimensions is the fixed length of every stored embedding.
const EmbeddingDimensions = 1536

// Lesson is a catalog entry. Facet columns are derived from Metadata on save.
type Lesson struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID string    `gorm:"column:external_id;type:text;not null;uniqueIndex" json:"external_id"`

	Title    string `gorm:"type:text;not null" json:"title"`
	Summary  string `gorm:"type:text;not null;default:''" json:"summary"`
	FileLink string `gorm:"type:text" json:"file_link,omitempty"`

	GradeLevels datatypes.JSONSlice[string]    `gorm:"type:jsonb" json:"grade_levels"`
	Metadata    datatypes.JSONType[Attributes] `gorm:"type:jsonb" json:"metadata"`

	ThematicCategories      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"thematic_categories"`
	SeasonTiming            datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"season_timing"`
	CoreCompetencies        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"core_competencies"`
	CulturalHeritage        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"cultural_heritage"`
	LocationRequirements    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"location_requirements"`
	ActivityType            datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"activity_type"`
	LessonFormat            string                      `gorm:"type:text;index" json:"lesson_format,omitempty"`
	AcademicIntegration     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"academic_integration"`
	SocialEmotionalLearning datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"social_emotional_learning"`
	CookingMethods          datatypes.JSONSlice[string] `gorm:"column:cooking_method;type:jsonb" json:"cooking_method"`
	MainIngredients         datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"main_ingredients"`
	Skills                  datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"skills"`
	Tags                    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"tags"`

	Confidence        datatypes.JSONType[Confidence] `gorm:"type:jsonb" json:"confidence"`
	ConfidenceOverall float64                        `gorm:"not null;default:0;index" json:"confidence_overall"`

	ContentText string           `gorm:"type:text;not null;default:''" json:"content_text,omitempty"`
	ContentHash string           `gorm:"type:text;index" json:"content_hash,omitempty"`
	Embedding   *pgvector.Vector `gorm:"type:vector(1536)" json:"-"`

	FlaggedForReview bool       `gorm:"not null;default:false" json:"flagged_for_review"`
	HasVersions      bool       `gorm:"not null;default:false" json:"has_versions"`
	VersionNumber    int        `gorm:"not null;default:1" json:"version_number"`
	CanonicalID      *uuid.UUID `gorm:"type:uuid;index" json:"canonical_id,omitempty"`
	AuditNotes       string     `gorm:"type:text;not null;default:''" json:"audit_notes,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if strings.TrimSpace(l.ExternalID) == "" {
		l.ExternalID = l.ID.String()
	}
	if l.VersionNumber == 0 {
		l.VersionNumber = 1
	}
	return nil
}

func (l *Lesson) BeforeSave(tx *gorm.DB) error {
	l.SyncFacets()
	return nil
}

// Attrs returns the typed attribute document.
func (l *Lesson) Attrs() Attributes { return l.Metadata.Data() }

// SetAttrs replaces the attribute document and re-derives facet columns.
func (l *Lesson) SetAttrs(a Attributes) {
	l.Metadata = datatypes.NewJSONType(a)
	l.SyncFacets()
}

// SyncFacets derives the facet columns and confidence ordering key from the documents.
func (l *Lesson) SyncFacets() {
	a := l.Metadata.Data()
	l.GradeLevels = slice(l.GradeLevels)
	l.ThematicCategories = slice(a.ThematicCategories)
	l.SeasonTiming = slice(a.SeasonTiming)
	l.CoreCompetencies = slice(a.CoreCompetencies)
	l.CulturalHeritage = slice(a.CulturalHeritage)
	l.LocationRequirements = slice(a.LocationRequirements)
	l.ActivityType = slice(a.ActivityType)
	l.LessonFormat = strings.TrimSpace(a.LessonFormat)
	l.AcademicIntegration = slice(a.AcademicIntegration)
	l.SocialEmotionalLearning = slice(a.SocialEmotionalLearning)
	l.CookingMethods = slice(a.CookingMethods)
	l.MainIngredients = slice(a.MainIngredients)
	l.Skills = slice(a.Skills)
	l.Tags = slice(a.Tags)
	l.ConfidenceOverall = l.Confidence.Data().Overall
}

// FacetValues returns the values of an array facet, or the scalar facet as a one-element set.
func (l *Lesson) FacetValues(f Facet) []string {
	switch f {
	case FacetGradeLevels:
		return l.GradeLevels
	case FacetThematicCategories:
		return l.ThematicCategories
	case FacetSeasonTiming:
		return l.SeasonTiming
	case FacetCoreCompetencies:
		return l.CoreCompetencies
	case FacetCulturalHeritage:
		return l.CulturalHeritage
	case FacetLocationRequirements:
		return l.LocationRequirements
	case FacetActivityType:
		return l.ActivityType
	case FacetAcademicIntegration:
		return l.AcademicIntegration
	case FacetSocialEmotionalLearning:
		return l.SocialEmotionalLearning
	case FacetMainIngredients:
		return l.MainIngredients
	case FacetSkills:
		return l.Skills
	case FacetTags:
		return l.Tags
	case FacetCookingMethod:
		return l.CookingMethods
	case FacetLessonFormat:
		return nonEmpty(l.LessonFormat)
	}
	return nil
}

// EmbeddingSlice returns the stored embedding or nil.
func (l *Lesson) EmbeddingSlice() []float32 {
	if l.Embedding == nil {
		return nil
	}
	return l.Embedding.Slice()
}

// SetEmbedding stores vec, or clears the column when vec is empty.
func (l *Lesson) SetEmbedding(vec []float32) {
	l.Embedding = VectorPtr(vec)
}

// VectorPtr wraps vec for storage; nil for an empty vector.
func VectorPtr(vec []float32) *pgvector.Vector {
	if len(vec) == 0 {
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}

func slice(in []string) datatypes.JSONSlice[string] {
	out := UnionStrings(in)
	return datatypes.JSONSlice[string](out)
}

func nonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}

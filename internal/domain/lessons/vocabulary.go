package lessons

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SynonymBidirectional  = "bidirectional"
	SynonymOneWay         = "oneway"
	SynonymTypoCorrection = "typo_correction"
)

type SynonymEntry struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Term        string                      `gorm:"type:text;not null;uniqueIndex:idx_search_synonym_term" json:"term"`
	Synonyms    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"synonyms"`
	SynonymType string                      `gorm:"type:text;not null;uniqueIndex:idx_search_synonym_term;check:chk_synonym_type,synonym_type IN ('bidirectional','oneway','typo_correction')" json:"synonym_type"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"not null" json:"updated_at"`
}

func (SynonymEntry) TableName() string { return "search_synonym" }

func (s *SynonymEntry) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type CulturalHierarchyNode struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Parent    string                      `gorm:"type:text;not null;uniqueIndex" json:"parent"`
	Children  datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"children"`
	CreatedAt time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null" json:"updated_at"`
}

func (CulturalHierarchyNode) TableName() string { return "cultural_heritage_hierarchy" }

func (n *CulturalHierarchyNode) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

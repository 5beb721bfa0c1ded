package vocabulary

import (
	"fmt"
	"os"
	"strings"
	"time"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"gopkg.in/yaml.v3"
)

// Seed is the on-disk vocabulary format.
type Seed struct {
	Synonyms  []Entry `yaml:"synonyms"`
	Hierarchy []Node  `yaml:"hierarchy"`
}

func LoadSeedFile(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("parse vocabulary seed: %w", err)
	}
	for i := range s.Synonyms {
		e := &s.Synonyms[i]
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			e.Type = types.SynonymBidirectional
		}
		if !types.Valid(e.Type, []string{types.SynonymBidirectional, types.SynonymOneWay, types.SynonymTypoCorrection}) {
			return Seed{}, fmt.Errorf("synonym %q: unknown type %q", e.Term, e.Type)
		}
		if strings.TrimSpace(e.Term) == "" {
			return Seed{}, fmt.Errorf("synonym entry %d: empty term", i)
		}
	}
	return s, nil
}

func (s Seed) Snapshot() *Snapshot { return NewSnapshot(s.Synonyms, s.Hierarchy) }

// Rows converts the seed into table rows for upsert.
func (s Seed) Rows(now time.Time) ([]*types.SynonymEntry, []*types.CulturalHierarchyNode) {
	syns := make([]*types.SynonymEntry, 0, len(s.Synonyms))
	for _, e := range s.Synonyms {
		syns = append(syns, &types.SynonymEntry{
			Term:        normalizeTerm(e.Term),
			SynonymType: e.Type,
			Synonyms:    types.UnionStrings(e.Synonyms),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	nodes := make([]*types.CulturalHierarchyNode, 0, len(s.Hierarchy))
	for _, n := range s.Hierarchy {
		nodes = append(nodes, &types.CulturalHierarchyNode{
			Parent:    strings.TrimSpace(n.Parent),
			Children:  types.UnionStrings(n.Children),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return syns, nodes
}

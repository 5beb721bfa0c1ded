package vocabulary

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
)

// Snapshot is an immutable view of the synonym and cultural hierarchy tables.
// It is safe for concurrent use.
type Snapshot struct {
	version string

	// any member of a bidirectional entry -> every member of every entry it belongs to
	groups map[string][]string
	// oneway and typo entries: term -> synonyms
	directed map[string][]string
	// lowercased parent -> full descendant set, original casing
	children map[string][]string
	// parents whose descendant set reaches past their direct children
	nested int
}

// Entry is a synonym row in plain form.
type Entry struct {
	Term     string   `yaml:"term"`
	Type     string   `yaml:"type"`
	Synonyms []string `yaml:"synonyms"`
}

// Node is a hierarchy edge set in plain form.
type Node struct {
	Parent   string   `yaml:"parent"`
	Children []string `yaml:"children"`
}

// NewSnapshot builds a snapshot. Hierarchy edges are closed transitively so a child
// that is itself a parent contributes its own descendants; cycles are tolerated.
func NewSnapshot(entries []Entry, nodes []Node) *Snapshot {
	s := &Snapshot{
		groups:   map[string][]string{},
		directed: map[string][]string{},
		children: map[string][]string{},
	}
	for _, e := range entries {
		term := normalizeTerm(e.Term)
		if term == "" {
			continue
		}
		syns := make([]string, 0, len(e.Synonyms))
		for _, syn := range e.Synonyms {
			if syn = normalizeTerm(syn); syn != "" && syn != term {
				syns = append(syns, syn)
			}
		}
		switch strings.TrimSpace(e.Type) {
		case types.SynonymOneWay, types.SynonymTypoCorrection:
			s.directed[term] = append(s.directed[term], syns...)
		default:
			members := append([]string{term}, syns...)
			for _, m := range members {
				s.groups[m] = append(s.groups[m], members...)
			}
		}
	}

	edges := map[string][]string{}
	display := map[string]string{}
	for _, n := range nodes {
		parent := strings.ToLower(strings.TrimSpace(n.Parent))
		if parent == "" {
			continue
		}
		for _, child := range n.Children {
			child = strings.TrimSpace(child)
			if child == "" {
				continue
			}
			key := strings.ToLower(child)
			if _, ok := display[key]; !ok {
				display[key] = child
			}
			edges[parent] = append(edges[parent], key)
		}
	}
	// Expansion walks the whole subtree, so a parent whose child is itself a
	// parent expands to grandchildren too.
	for parent, direct := range edges {
		s.children[parent] = descendants(parent, edges, display)
		if len(s.children[parent]) > len(types.UnionStrings(direct)) {
			s.nested++
		}
	}
	s.version = digest(entries, nodes)
	return s
}

func descendants(root string, edges map[string][]string, display map[string]string) []string {
	out := []string{}
	seen := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, key := range edges[cur] {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, display[key])
			queue = append(queue, key)
		}
	}
	return out
}

// Version identifies the snapshot contents.
// NestedParents counts parents whose expansion includes more than their direct children.
func (s *Snapshot) NestedParents() int {
	if s == nil {
		return 0
	}
	return s.nested
}

func (s *Snapshot) Version() string {
	if s == nil {
		return ""
	}
	return s.version
}

// ExpandSynonyms rewrites query into a deduplicated OR expression of its tokens and
// their synonyms. ok is false when the query has no usable tokens.
func (s *Snapshot) ExpandSynonyms(query string) (string, bool) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return "", false
	}
	seen := map[string]struct{}{}
	terms := make([]string, 0, len(tokens))
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, tok := range tokens {
		add(tok)
		if s == nil {
			continue
		}
		for _, m := range s.groups[tok] {
			add(m)
		}
		for _, syn := range s.directed[tok] {
			add(syn)
		}
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = quoteTerm(t)
	}
	return strings.Join(parts, " OR "), true
}

// ExpandHierarchy returns selected plus the descendants of every known parent,
// deduplicated case-insensitively in first-seen order.
func (s *Snapshot) ExpandHierarchy(selected []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	for _, v := range selected {
		add(v)
		if s == nil {
			continue
		}
		for _, child := range s.children[strings.ToLower(strings.TrimSpace(v))] {
			add(child)
		}
	}
	return out
}

// Tokenize lowercases and splits on whitespace. Characters with query syntax meaning
// are stripped so every token is matched literally.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.ReplaceAll(f, `"`, ""), "-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalizeTerm(s string) string {
	return strings.Join(Tokenize(s), " ")
}

func quoteTerm(t string) string {
	if strings.Contains(t, " ") || t == "or" {
		return `"` + t + `"`
	}
	return t
}

func digest(entries []Entry, nodes []Node) string {
	lines := make([]string, 0, len(entries)+len(nodes))
	for _, e := range entries {
		syns := types.SortedCopy(e.Synonyms)
		lines = append(lines, "s|"+e.Type+"|"+normalizeTerm(e.Term)+"|"+strings.Join(syns, ","))
	}
	for _, n := range nodes {
		kids := types.SortedCopy(n.Children)
		lines = append(lines, "h|"+strings.ToLower(strings.TrimSpace(n.Parent))+"|"+strings.Join(kids, ","))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:8])
}

package vocabulary

import (
	"context"
	"errors"
	"sync"
	"time"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"golang.org/x/sync/singleflight"
)

// Source reads the vocabulary tables.
type Source interface {
	ListSynonyms(dbc dbctx.Context) ([]*types.SynonymEntry, error)
	ListHierarchy(dbc dbctx.Context) ([]*types.CulturalHierarchyNode, error)
}

// Lookup is the read-only vocabulary used by search.
type Lookup interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Provider serves a cached Snapshot and reloads it from Source once the TTL elapses.
// A failed reload keeps serving the previous snapshot.
type Provider struct {
	src Source
	ttl time.Duration
	log *logger.Logger
	now func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	snap     *Snapshot
	loadedAt time.Time
}

func NewProvider(src Source, ttl time.Duration, log *logger.Logger) *Provider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{src: src, ttl: ttl, log: log.With("component", "VocabularyProvider"), now: time.Now}
}

// Static wraps a fixed snapshot.
type Static struct{ Snap *Snapshot }

func (s Static) Snapshot(context.Context) (*Snapshot, error) { return s.Snap, nil }

func (p *Provider) Snapshot(ctx context.Context) (*Snapshot, error) {
	p.mu.RLock()
	snap, loadedAt := p.snap, p.loadedAt
	p.mu.RUnlock()
	if snap != nil && p.now().Sub(loadedAt) < p.ttl {
		return snap, nil
	}

	v, err, _ := p.group.Do("load", func() (interface{}, error) {
		return p.load(ctx)
	})
	if err != nil {
		observability.Current().IncVocabularyReload("error")
		if snap != nil {
			p.log.Warn("vocabulary reload failed; serving stale snapshot", "error", err, "version", snap.Version())
			return snap, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

// Invalidate forces the next Snapshot call to reload.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.loadedAt = time.Time{}
	p.mu.Unlock()
}

func (p *Provider) load(ctx context.Context) (*Snapshot, error) {
	if p.src == nil {
		return nil, errors.New("vocabulary source not configured")
	}
	dbc := dbctx.Context{Ctx: ctx}
	syns, err := p.src.ListSynonyms(dbc)
	if err != nil {
		return nil, err
	}
	nodes, err := p.src.ListHierarchy(dbc)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(EntriesFromRows(syns), NodesFromRows(nodes))

	p.mu.Lock()
	prev := p.snap
	p.snap = snap
	p.loadedAt = p.now()
	p.mu.Unlock()

	observability.Current().IncVocabularyReload("ok")
	if prev == nil || prev.Version() != snap.Version() {
		p.log.Info("vocabulary loaded",
			"version", snap.Version(),
			"synonyms", len(syns),
			"hierarchy_parents", len(nodes),
			"hierarchy_expansion", "transitive",
			"hierarchy_nested_parents", snap.NestedParents(),
		)
	}
	return snap, nil
}

func EntriesFromRows(rows []*types.SynonymEntry) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, Entry{Term: r.Term, Type: r.SynonymType, Synonyms: r.Synonyms})
	}
	return out
}

func NodesFromRows(rows []*types.CulturalHierarchyNode) []Node {
	out := make([]Node, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			continue
		}
		out = append(out, Node{Parent: r.Parent, Children: r.Children})
	}
	return out
}

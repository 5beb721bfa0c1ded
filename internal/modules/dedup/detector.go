package dedup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

const (
	SourceHash      = "hash"
	SourceEmbedding = "embedding"
	SourceTitle     = "title"

	DefaultEmbeddingThreshold = 0.5
	DefaultEmbeddingLimit     = 10
	DefaultTitleThreshold     = 0.3
	DefaultTitleLimit         = 10
	DefaultMaxCandidates      = 20
)

// LessonFinder is the catalog lookup surface the detector needs.
type LessonFinder interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error)
	UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error
	FindByContentHash(dbc dbctx.Context, hash string, exclude []uuid.UUID) ([]*types.Lesson, error)
	NearestByEmbedding(dbc dbctx.Context, vec []float32, threshold float64, limit int, exclude []uuid.UUID) ([]repos.NearestLesson, error)
	SimilarTitles(dbc dbctx.Context, title string, minSimilarity float64, limit int, exclude []uuid.UUID) ([]repos.NearestLesson, error)
}

type SubmissionStore interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error
}

type SimilarityStore interface {
	Upsert(dbc dbctx.Context, rows []*types.SubmissionSimilarity) error
	ListBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.SubmissionSimilarity, error)
	DeleteBySubmission(dbc dbctx.Context, submissionID uuid.UUID) error
}

type Fingerprinter interface {
	Fingerprint(ctx context.Context, title, body string) fingerprint.Fingerprint
}

type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type Config struct {
	EmbeddingThreshold float64
	EmbeddingLimit     int
	TitleThreshold     float64
	TitleLimit         int
	MaxCandidates      int
}

// Match is one catalog lesson returned by a single lookup.
type Match struct {
	LessonID   uuid.UUID     `json:"lesson_id"`
	Title      string        `json:"title"`
	Similarity float64       `json:"similarity"`
	MatchType  string        `json:"match_type"`
	Source     string        `json:"source"`
	Lesson     *types.Lesson `json:"-"`
}

// Candidate is a merged, scored duplicate candidate.
type Candidate struct {
	LessonID          uuid.UUID `json:"lesson_id"`
	Title             string    `json:"title"`
	TitleSimilarity   float64   `json:"title_similarity"`
	ContentSimilarity float64   `json:"content_similarity"`
	MetadataOverlap   float64   `json:"metadata_overlap_score"`
	CombinedScore     float64   `json:"combined_score"`
	MatchType         string    `json:"match_type"`
	Sources           []string  `json:"sources,omitempty"`
}

func (c Candidate) Snapshot() types.DuplicateSnapshot {
	return types.DuplicateSnapshot{LessonID: c.LessonID, Title: c.Title, CombinedScore: c.CombinedScore, MatchType: c.MatchType}
}

type DetectOptions struct {
	Refresh bool
}

type Detector struct {
	lessons      LessonFinder
	submissions  SubmissionStore
	similarities SimilarityStore
	fp           Fingerprinter
	tx           TxRunner
	cfg          Config
	log          *logger.Logger
	now          func() time.Time
}

func NewDetector(lessons LessonFinder, submissions SubmissionStore, similarities SimilarityStore, fp Fingerprinter, tx TxRunner, cfg Config, log *logger.Logger) *Detector {
	if cfg.EmbeddingThreshold <= 0 {
		cfg.EmbeddingThreshold = DefaultEmbeddingThreshold
	}
	if cfg.EmbeddingLimit <= 0 {
		cfg.EmbeddingLimit = DefaultEmbeddingLimit
	}
	if cfg.TitleThreshold <= 0 {
		cfg.TitleThreshold = DefaultTitleThreshold
	}
	if cfg.TitleLimit <= 0 {
		cfg.TitleLimit = DefaultTitleLimit
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	return &Detector{
		lessons:      lessons,
		submissions:  submissions,
		similarities: similarities,
		fp:           fp,
		tx:           tx,
		cfg:          cfg,
		log:          log.With("module", "DuplicateDetector"),
		now:          time.Now,
	}
}

// FindByHash returns catalog lessons whose content hash equals hash.
func (d *Detector) FindByHash(ctx context.Context, hash string) ([]Match, error) {
	return d.findByHash(dbctx.New(ctx), hash, nil)
}

// FindByEmbedding returns lessons at or above threshold cosine similarity, nearest first.
// Non-positive threshold or limit fall back to the defaults.
func (d *Detector) FindByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]Match, error) {
	if threshold <= 0 {
		threshold = d.cfg.EmbeddingThreshold
	}
	if limit <= 0 {
		limit = d.cfg.EmbeddingLimit
	}
	return d.findByEmbedding(dbctx.New(ctx), vec, threshold, limit, nil)
}

func (d *Detector) FindByTitle(ctx context.Context, title string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = d.cfg.TitleLimit
	}
	return d.findByTitle(dbctx.New(ctx), title, limit, nil)
}

func (d *Detector) findByHash(dbc dbctx.Context, hash string, exclude []uuid.UUID) ([]Match, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return []Match{}, nil
	}
	rows, err := d.lessons.FindByContentHash(dbc, hash, exclude)
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	out := make([]Match, 0, len(rows))
	for _, l := range rows {
		out = append(out, Match{LessonID: l.ID, Title: l.Title, Similarity: 1, MatchType: types.MatchExact, Source: SourceHash, Lesson: l})
	}
	return out, nil
}

func (d *Detector) findByEmbedding(dbc dbctx.Context, vec []float32, threshold float64, limit int, exclude []uuid.UUID) ([]Match, error) {
	if len(vec) == 0 {
		return []Match{}, nil
	}
	rows, err := d.lessons.NearestByEmbedding(dbc, vec, threshold, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("find by embedding: %w", err)
	}
	return nearestToMatches(rows, SourceEmbedding, threshold), nil
}

func (d *Detector) findByTitle(dbc dbctx.Context, title string, limit int, exclude []uuid.UUID) ([]Match, error) {
	if strings.TrimSpace(title) == "" {
		return []Match{}, nil
	}
	rows, err := d.lessons.SimilarTitles(dbc, title, d.cfg.TitleThreshold, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("find by title: %w", err)
	}
	return nearestToMatches(rows, SourceTitle, d.cfg.TitleThreshold), nil
}

func nearestToMatches(rows []repos.NearestLesson, source string, threshold float64) []Match {
	out := make([]Match, 0, len(rows))
	for _, r := range rows {
		if r.Lesson == nil || r.Similarity < threshold {
			continue
		}
		out = append(out, Match{
			LessonID:   r.Lesson.ID,
			Title:      r.Lesson.Title,
			Similarity: clamp01(r.Similarity),
			MatchType:  Tier(r.Similarity),
			Source:     source,
			Lesson:     r.Lesson,
		})
	}
	return out
}

// target is the content being checked against the catalog.
type target struct {
	title     string
	body      string
	hash      string
	embedding []float32
	facets    *types.Lesson
	exclude   []uuid.UUID
}

// DetectForSubmission scores the catalog against a submission and caches the
// pairwise scores. Cached scores are returned unless opts.Refresh is set.
func (d *Detector) DetectForSubmission(ctx context.Context, submissionID uuid.UUID, opts DetectOptions) (out []Candidate, err error) {
	const op = "dedup.DetectForSubmission"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("submission.id", submissionID.String()))
	defer func() { observability.EndSpan(span, err) }()

	dbc := dbctx.New(ctx)
	sub, err := d.submissions.GetByID(dbc, submissionID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if sub == nil {
		return nil, domainagg.NewSubjectError(domainagg.CodeNotFound, op, submissionID.String(), "submission not found", nil)
	}

	if !opts.Refresh {
		cached, err := d.cachedCandidates(dbc, submissionID)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			return cached, nil
		}
	}

	hash, vec := sub.ContentHash, sub.EmbeddingSlice()
	if hash == "" || len(vec) == 0 {
		hash, vec = d.ensureFingerprint(ctx, sub.ExtractedTitle, sub.ExtractedBody, hash, vec, func(h string, v []float32) error {
			return d.submissions.UpdateFingerprint(dbc, sub.ID, h, v)
		})
	}

	facets := &types.Lesson{GradeLevels: sub.GradeLevels, Metadata: sub.Metadata}
	facets.SyncFacets()
	candidates, err := d.detect(ctx, target{
		title:     sub.ExtractedTitle,
		body:      sub.ExtractedBody,
		hash:      hash,
		embedding: vec,
		facets:    facets,
	})
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	rows := make([]*types.SubmissionSimilarity, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, &types.SubmissionSimilarity{
			SubmissionID:         sub.ID,
			LessonID:             c.LessonID,
			TitleSimilarity:      c.TitleSimilarity,
			ContentSimilarity:    c.ContentSimilarity,
			MetadataOverlapScore: c.MetadataOverlap,
			CombinedScore:        c.CombinedScore,
			MatchType:            c.MatchType,
			CreatedAt:            now,
			UpdatedAt:            now,
		})
	}
	persist := func(dbc dbctx.Context) error {
		if err := d.similarities.DeleteBySubmission(dbc, sub.ID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return d.similarities.Upsert(dbc, rows)
	}
	if d.tx != nil {
		err = d.tx.InTx(ctx, persist)
	} else {
		err = persist(dbc)
	}
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, fmt.Errorf("persist similarities: %w", err))
	}
	return candidates, nil
}

// DetectForLesson scores the catalog against an existing lesson, excluding itself.
func (d *Detector) DetectForLesson(ctx context.Context, lessonID uuid.UUID) (out []Candidate, err error) {
	const op = "dedup.DetectForLesson"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("lesson.id", lessonID.String()))
	defer func() { observability.EndSpan(span, err) }()

	dbc := dbctx.New(ctx)
	l, err := d.lessons.GetByID(dbc, lessonID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if l == nil {
		return nil, domainagg.NewSubjectError(domainagg.CodeNotFound, op, lessonID.String(), "lesson not found", nil)
	}
	hash, vec := l.ContentHash, l.EmbeddingSlice()
	if hash == "" || len(vec) == 0 {
		hash, vec = d.ensureFingerprint(ctx, l.Title, l.ContentText, hash, vec, func(h string, v []float32) error {
			return d.lessons.UpdateFingerprint(dbc, l.ID, h, v)
		})
	}
	return d.detect(ctx, target{
		title:     l.Title,
		body:      l.ContentText,
		hash:      hash,
		embedding: vec,
		facets:    l,
		exclude:   []uuid.UUID{l.ID},
	})
}

// ensureFingerprint fills a missing hash or embedding and stores what it computed.
// Storage failures are logged; detection proceeds with the computed values.
func (d *Detector) ensureFingerprint(ctx context.Context, title, body, hash string, vec []float32, store func(string, []float32) error) (string, []float32) {
	if d.fp == nil {
		if hash == "" {
			hash = fingerprint.ComputeHash(body)
		}
		return hash, vec
	}
	fp := d.fp.Fingerprint(ctx, title, body)
	if hash == "" {
		hash = fp.Hash
	}
	var newVec []float32
	if len(vec) == 0 && fp.EmbeddingErr == nil {
		vec = fp.Embedding
		newVec = fp.Embedding
	}
	if err := store(hash, newVec); err != nil {
		d.log.Warn("store fingerprint failed", "error", err)
	}
	return hash, vec
}

func (d *Detector) detect(ctx context.Context, p target) ([]Candidate, error) {
	var (
		mu     sync.Mutex
		merged = map[uuid.UUID]*scored{}
		order  []uuid.UUID
	)
	collect := func(ms []Match) {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range ms {
			s, ok := merged[m.LessonID]
			if !ok {
				s = &scored{lesson: m.Lesson}
				merged[m.LessonID] = s
				order = append(order, m.LessonID)
			}
			s.sources = append(s.sources, m.Source)
			if m.Source == SourceEmbedding {
				s.semantic = m.Similarity
				s.hasSemantic = true
			}
			if m.Source == SourceHash {
				s.exactHash = true
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ms, err := d.findByHash(dbctx.New(gctx), p.hash, p.exclude)
		if err != nil {
			return err
		}
		collect(ms)
		observability.Current().IncDuplicateMatch(SourceHash, types.MatchExact, len(ms))
		return nil
	})
	if len(p.embedding) > 0 {
		g.Go(func() error {
			ms, err := d.findByEmbedding(dbctx.New(gctx), p.embedding, d.cfg.EmbeddingThreshold, d.cfg.EmbeddingLimit, p.exclude)
			if err != nil {
				d.log.Warn("embedding lookup failed; continuing without semantic matches", "error", err)
				return nil
			}
			collect(ms)
			countTiers(SourceEmbedding, ms)
			return nil
		})
	}
	g.Go(func() error {
		ms, err := d.findByTitle(dbctx.New(gctx), p.title, d.cfg.TitleLimit, p.exclude)
		if err != nil {
			d.log.Warn("title lookup failed; continuing without lexical matches", "error", err)
			return nil
		}
		collect(ms)
		countTiers(SourceTitle, ms)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "dedup.detect", err)
	}

	out := make([]Candidate, 0, len(merged))
	for _, id := range order {
		s := merged[id]
		if s.lesson == nil || excluded(id, p.exclude) {
			continue
		}
		out = append(out, s.candidate(p))
	}
	sortCandidates(out)
	if len(out) > d.cfg.MaxCandidates {
		out = out[:d.cfg.MaxCandidates]
	}
	return out, nil
}

func (d *Detector) cachedCandidates(dbc dbctx.Context, submissionID uuid.UUID) ([]Candidate, error) {
	rows, err := d.similarities.ListBySubmission(dbc, submissionID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "dedup.cached", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.LessonID)
	}
	lessons, err := d.lessons.GetByIDs(dbc, ids)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "dedup.cached", err)
	}
	titles := make(map[uuid.UUID]string, len(lessons))
	for _, l := range lessons {
		titles[l.ID] = l.Title
	}
	out := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		title, ok := titles[r.LessonID]
		if !ok {
			// lesson left the catalog since scoring
			continue
		}
		out = append(out, Candidate{
			LessonID:          r.LessonID,
			Title:             title,
			TitleSimilarity:   r.TitleSimilarity,
			ContentSimilarity: r.ContentSimilarity,
			MetadataOverlap:   r.MetadataOverlapScore,
			CombinedScore:     r.CombinedScore,
			MatchType:         r.MatchType,
		})
	}
	sortCandidates(out)
	return out, nil
}

type scored struct {
	lesson      *types.Lesson
	sources     []string
	semantic    float64
	hasSemantic bool
	exactHash   bool
}

func (s *scored) candidate(p target) Candidate {
	l := s.lesson
	title := TrigramSimilarity(p.title, l.Title)
	exact := s.exactHash || (p.hash != "" && p.hash == l.ContentHash)
	var content float64
	switch {
	case exact:
		content = 1
	case s.hasSemantic:
		content = s.semantic
	case len(p.embedding) > 0 && len(l.EmbeddingSlice()) > 0:
		content = CosineSimilarity(p.embedding, l.EmbeddingSlice())
	default:
		content = TokenJaccard(p.body, l.ContentText)
	}
	attrs := AttributeOverlap(p.facets, l)
	combined := Composite(title, content, attrs)
	matchType := Tier(combined)
	if exact {
		matchType = types.MatchExact
	}
	return Candidate{
		LessonID:          l.ID,
		Title:             l.Title,
		TitleSimilarity:   title,
		ContentSimilarity: content,
		MetadataOverlap:   attrs,
		CombinedScore:     combined,
		MatchType:         matchType,
		Sources:           types.UnionStrings(s.sources),
	}
}

func sortCandidates(out []Candidate) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].LessonID.String() < out[j].LessonID.String()
	})
}

func countTiers(source string, ms []Match) {
	m := observability.Current()
	if m == nil {
		return
	}
	for _, x := range ms {
		m.IncDuplicateMatch(source, x.MatchType, 1)
	}
}

func excluded(id uuid.UUID, exclude []uuid.UUID) bool {
	for _, x := range exclude {
		if x == id {
			return true
		}
	}
	return false
}

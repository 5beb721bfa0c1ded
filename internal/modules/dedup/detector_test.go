package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type fakeLessons struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*types.Lesson
	nearest    []repos.NearestLesson
	titles     []repos.NearestLesson
	nearestErr error
	titleErr   error
	stored     map[uuid.UUID]string
}

func newFakeLessons(rows ...*types.Lesson) *fakeLessons {
	f := &fakeLessons{byID: map[uuid.UUID]*types.Lesson{}, stored: map[uuid.UUID]string{}}
	for _, l := range rows {
		f.byID[l.ID] = l
	}
	return f
}

func (f *fakeLessons) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	return f.byID[id], nil
}

func (f *fakeLessons) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error) {
	out := []*types.Lesson{}
	for _, id := range ids {
		if l, ok := f.byID[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLessons) UpdateFingerprint(_ dbctx.Context, id uuid.UUID, hash string, _ []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[id] = hash
	return nil
}

func (f *fakeLessons) FindByContentHash(_ dbctx.Context, hash string, exclude []uuid.UUID) ([]*types.Lesson, error) {
	out := []*types.Lesson{}
	for _, l := range f.byID {
		if l.ContentHash == hash && !excluded(l.ID, exclude) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLessons) NearestByEmbedding(_ dbctx.Context, _ []float32, threshold float64, limit int, exclude []uuid.UUID) ([]repos.NearestLesson, error) {
	if f.nearestErr != nil {
		return nil, f.nearestErr
	}
	out := []repos.NearestLesson{}
	for _, n := range f.nearest {
		if n.Similarity >= threshold && !excluded(n.Lesson.ID, exclude) && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeLessons) SimilarTitles(_ dbctx.Context, _ string, _ float64, _ int, exclude []uuid.UUID) ([]repos.NearestLesson, error) {
	if f.titleErr != nil {
		return nil, f.titleErr
	}
	out := []repos.NearestLesson{}
	for _, n := range f.titles {
		if !excluded(n.Lesson.ID, exclude) {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeSubmissions struct {
	byID   map[uuid.UUID]*types.Submission
	stored int
}

func (f *fakeSubmissions) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	return f.byID[id], nil
}

func (f *fakeSubmissions) UpdateFingerprint(_ dbctx.Context, id uuid.UUID, hash string, vec []float32) error {
	f.stored++
	s := f.byID[id]
	s.ContentHash = hash
	s.Embedding = types.VectorPtr(vec)
	return nil
}

type fakeSimilarities struct {
	rows    map[uuid.UUID][]*types.SubmissionSimilarity
	upserts int
}

func (f *fakeSimilarities) Upsert(_ dbctx.Context, rows []*types.SubmissionSimilarity) error {
	f.upserts++
	for _, r := range rows {
		f.rows[r.SubmissionID] = append(f.rows[r.SubmissionID], r)
	}
	return nil
}

func (f *fakeSimilarities) ListBySubmission(_ dbctx.Context, id uuid.UUID) ([]*types.SubmissionSimilarity, error) {
	return f.rows[id], nil
}

func (f *fakeSimilarities) DeleteBySubmission(_ dbctx.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

type fakeFingerprinter struct {
	vec []float32
	err error
}

func (f fakeFingerprinter) Fingerprint(_ context.Context, _, body string) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{Hash: fingerprint.ComputeHash(body), Embedding: f.vec, EmbeddingErr: f.err}
}

func lesson(title, body string) *types.Lesson {
	l := &types.Lesson{ID: uuid.New(), Title: title, ContentText: body, ContentHash: fingerprint.ComputeHash(body)}
	l.SyncFacets()
	return l
}

func TestFindByEmbeddingTiersAndThreshold(t *testing.T) {
	a, b, c := lesson("A", "a"), lesson("B", "b"), lesson("C", "c")
	f := newFakeLessons(a, b, c)
	f.nearest = []repos.NearestLesson{
		{Lesson: a, Similarity: 0.97},
		{Lesson: b, Similarity: 0.80},
		{Lesson: c, Similarity: 0.40},
	}
	d := NewDetector(f, nil, nil, nil, nil, Config{}, logger.Nop())

	got, err := d.FindByEmbedding(context.Background(), []float32{1}, 0, 0)
	if err != nil {
		t.Fatalf("FindByEmbedding: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches above 0.5, got %d", len(got))
	}
	if got[0].LessonID != a.ID || got[0].MatchType != types.MatchExact || got[1].MatchType != types.MatchMedium {
		t.Fatalf("unexpected matches %+v", got)
	}

	got, _ = d.FindByEmbedding(context.Background(), []float32{1}, 0.9, 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 match above 0.9, got %d", len(got))
	}
	if got, _ := d.FindByEmbedding(context.Background(), nil, 0, 0); len(got) != 0 {
		t.Fatalf("nil vector should match nothing")
	}
}

func TestFindByHashIsAlwaysExact(t *testing.T) {
	a := lesson("Bread", "knead the dough")
	d := NewDetector(newFakeLessons(a), nil, nil, nil, nil, Config{}, logger.Nop())
	got, err := d.FindByHash(context.Background(), a.ContentHash)
	if err != nil || len(got) != 1 || got[0].MatchType != types.MatchExact || got[0].Similarity != 1 {
		t.Fatalf("unexpected %+v err=%v", got, err)
	}
	if got, _ := d.FindByHash(context.Background(), " "); len(got) != 0 {
		t.Fatalf("blank hash should match nothing")
	}
}

func TestDetectForSubmissionScoresAndCaches(t *testing.T) {
	same := lesson("Tomato Salsa", "Chop tomatoes and onions.")
	near := lesson("Fresh Salsa", "Something else entirely")
	f := newFakeLessons(same, near)
	f.nearest = []repos.NearestLesson{{Lesson: near, Similarity: 0.9}}

	sub := &types.Submission{ID: uuid.New(), ExtractedTitle: "Tomato Salsa", ExtractedBody: "chop tomatoes   and onions."}
	subs := &fakeSubmissions{byID: map[uuid.UUID]*types.Submission{sub.ID: sub}}
	sims := &fakeSimilarities{rows: map[uuid.UUID][]*types.SubmissionSimilarity{}}
	d := NewDetector(f, subs, sims, fakeFingerprinter{vec: []float32{0.1, 0.2}}, nil, Config{}, logger.Nop())

	got, err := d.DetectForSubmission(context.Background(), sub.ID, DetectOptions{})
	if err != nil {
		t.Fatalf("DetectForSubmission: %v", err)
	}
	if subs.stored != 1 || sub.ContentHash != same.ContentHash {
		t.Fatalf("expected fingerprint to be stored")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].LessonID != same.ID || got[0].MatchType != types.MatchExact || got[0].ContentSimilarity != 1 {
		t.Fatalf("expected exact hash match first, got %+v", got[0])
	}
	if got[0].CombinedScore < got[1].CombinedScore {
		t.Fatalf("candidates must be ordered by combined score")
	}
	if got[1].ContentSimilarity != 0.9 {
		t.Fatalf("semantic similarity should drive content score, got %v", got[1].ContentSimilarity)
	}
	if len(sims.rows[sub.ID]) != 2 {
		t.Fatalf("expected similarity rows to be persisted")
	}

	f.nearest = nil
	again, err := d.DetectForSubmission(context.Background(), sub.ID, DetectOptions{})
	if err != nil || len(again) != 2 || sims.upserts != 1 {
		t.Fatalf("expected cached candidates, got %d upserts=%d err=%v", len(again), sims.upserts, err)
	}

	refreshed, err := d.DetectForSubmission(context.Background(), sub.ID, DetectOptions{Refresh: true})
	if err != nil || len(refreshed) != 1 || sims.upserts != 2 || len(sims.rows[sub.ID]) != 1 {
		t.Fatalf("expected refresh to rescore and replace rows, got %d rows=%d", len(refreshed), len(sims.rows[sub.ID]))
	}
}

func TestDetectEmptyBodiesAreNotHashMatches(t *testing.T) {
	blank := lesson("Garden Walk", "")
	f := newFakeLessons(blank)
	sub := &types.Submission{ID: uuid.New(), ExtractedTitle: "Worm Bins", ExtractedBody: " \n "}
	subs := &fakeSubmissions{byID: map[uuid.UUID]*types.Submission{sub.ID: sub}}
	sims := &fakeSimilarities{rows: map[uuid.UUID][]*types.SubmissionSimilarity{}}
	d := NewDetector(f, subs, sims, fakeFingerprinter{}, nil, Config{}, logger.Nop())

	got, err := d.DetectForSubmission(context.Background(), sub.ID, DetectOptions{})
	if err != nil {
		t.Fatalf("DetectForSubmission: %v", err)
	}
	if blank.ContentHash != "" || sub.ContentHash != "" {
		t.Fatalf("empty bodies must stay unhashed: lesson=%q submission=%q", blank.ContentHash, sub.ContentHash)
	}
	for _, c := range got {
		if c.LessonID == blank.ID && c.MatchType == types.MatchExact {
			t.Fatalf("empty bodies matched as exact duplicates: %+v", c)
		}
	}
}

func TestDetectForSubmissionWithoutEmbedding(t *testing.T) {
	other := lesson("Rice Balls", "shape the rice into balls")
	f := newFakeLessons(other)
	f.titles = []repos.NearestLesson{{Lesson: other, Similarity: 0.6}}
	f.titleErr = nil

	sub := &types.Submission{ID: uuid.New(), ExtractedTitle: "Rice Balls", ExtractedBody: "shape rice into small balls"}
	subs := &fakeSubmissions{byID: map[uuid.UUID]*types.Submission{sub.ID: sub}}
	sims := &fakeSimilarities{rows: map[uuid.UUID][]*types.SubmissionSimilarity{}}
	fp := fakeFingerprinter{err: fingerprint.ErrEmbeddingUnavailable}
	d := NewDetector(f, subs, sims, fp, nil, Config{}, logger.Nop())

	got, err := d.DetectForSubmission(context.Background(), sub.ID, DetectOptions{})
	if err != nil {
		t.Fatalf("DetectForSubmission: %v", err)
	}
	if len(got) != 1 || got[0].Sources[0] != SourceTitle {
		t.Fatalf("expected lexical candidate, got %+v", got)
	}
	want := TokenJaccard(sub.ExtractedBody, other.ContentText)
	if got[0].ContentSimilarity != want {
		t.Fatalf("expected jaccard content score %v, got %v", want, got[0].ContentSimilarity)
	}
	if sub.Embedding != nil {
		t.Fatalf("embedding must stay empty when unavailable")
	}
}

func TestDetectDegradesOnLookupFailure(t *testing.T) {
	a := lesson("A", "body")
	f := newFakeLessons(a)
	f.nearestErr = errors.New("no vector extension")
	f.titleErr = errors.New("no pg_trgm")
	d := NewDetector(f, nil, nil, nil, nil, Config{}, logger.Nop())

	got, err := d.DetectForLesson(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("DetectForLesson: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("a lesson must never match itself, got %+v", got)
	}
}

func TestDetectForLessonExcludesItself(t *testing.T) {
	a := lesson("Drum Circle", "keep the beat together")
	twin := lesson("Drum Circle!", "keep the beat together")
	f := newFakeLessons(a, twin)
	f.nearest = []repos.NearestLesson{{Lesson: a, Similarity: 1}, {Lesson: twin, Similarity: 0.99}}
	a.SetEmbedding([]float32{1, 0})
	d := NewDetector(f, nil, nil, nil, nil, Config{}, logger.Nop())

	got, err := d.DetectForLesson(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("DetectForLesson: %v", err)
	}
	if len(got) != 1 || got[0].LessonID != twin.ID || got[0].MatchType != types.MatchExact {
		t.Fatalf("expected only the twin, got %+v", got)
	}
}

func TestDetectMissingSubjects(t *testing.T) {
	d := NewDetector(newFakeLessons(), &fakeSubmissions{byID: map[uuid.UUID]*types.Submission{}}, nil, nil, nil, Config{}, logger.Nop())
	id := uuid.New()
	_, err := d.DetectForSubmission(context.Background(), id, DetectOptions{})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) || domainagg.SubjectOf(err) != id.String() {
		t.Fatalf("expected not_found naming %s, got %v", id, err)
	}
	if _, err := d.DetectForLesson(context.Background(), id); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

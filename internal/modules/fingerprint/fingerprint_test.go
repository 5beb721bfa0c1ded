package fingerprint

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type fakeEmbedder struct {
	calls int
	dims  int
	err   error
	last  string
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	f.calls++
	f.last = text
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)/1000
	}
	return vec, nil
}

type recordMetrics struct{ statuses []string }

func (m *recordMetrics) ObserveEmbedding(status string, _ time.Duration) {
	m.statuses = append(m.statuses, status)
}

func TestComputeHashNormalizesFormatting(t *testing.T) {
	a := ComputeHash("Mix the  Flour\n\nand water.")
	b := ComputeHash("  mix the flour and WATER.  ")
	if a != b {
		t.Fatalf("expected formatting-insensitive hash: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if ComputeHash("water and flour") == ComputeHash("flour and water") {
		t.Fatalf("word order must change the hash")
	}
	if ComputeHash("x") != ComputeHash("x") {
		t.Fatalf("hash must be deterministic")
	}
}

func TestComputeHashSkipsEmptyBodies(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\t\u00a0\u200b"} {
		if got := ComputeHash(body); got != "" {
			t.Fatalf("body %q: expected no hash, got %s", body, got)
		}
	}
}

func TestEmbeddingTextTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("é", 100)
	text := EmbeddingText("T", body, 10)
	if len(text) > 40 {
		t.Fatalf("expected at most 40 bytes, got %d", len(text))
	}
	if !strings.HasPrefix(text, "T\n\n") {
		t.Fatalf("expected title prefix, got %q", text)
	}
	for _, r := range text {
		if r == '�' {
			t.Fatalf("truncation split a rune: %q", text)
		}
	}
	if got := EmbeddingText("Title", "", 10); got != "Title" {
		t.Fatalf("expected bare title, got %q", got)
	}
}

func TestRequestEmbeddingValidatesDimensions(t *testing.T) {
	m := &recordMetrics{}
	emb := &fakeEmbedder{dims: 12}
	svc := NewService(emb, Config{Dimensions: 12}, logger.Nop(), m)

	vec, err := svc.RequestEmbedding(context.Background(), "Bread", "knead dough")
	if err != nil || len(vec) != 12 {
		t.Fatalf("expected 12-dim vector, got %d err=%v", len(vec), err)
	}
	if emb.last != "Bread\n\nknead dough" {
		t.Fatalf("unexpected embedding text %q", emb.last)
	}

	emb.dims = 5
	if _, err := svc.RequestEmbedding(context.Background(), "Bread", "knead dough"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable on wrong dims, got %v", err)
	}

	emb.err = errors.New("503 from provider")
	fp := svc.Fingerprint(context.Background(), "Bread", "knead dough")
	if !errors.Is(fp.EmbeddingErr, ErrEmbeddingUnavailable) || fp.Embedding != nil {
		t.Fatalf("expected unavailable embedding, got %v", fp.EmbeddingErr)
	}
	if fp.Hash != ComputeHash("knead dough") {
		t.Fatalf("hash must be computed even when embedding fails")
	}
	if len(m.statuses) != 3 || m.statuses[0] != "success" || m.statuses[2] != "unavailable" {
		t.Fatalf("unexpected metric statuses %v", m.statuses)
	}
}

func TestRequestEmbeddingWithoutProvider(t *testing.T) {
	svc := NewService(nil, Config{}, logger.Nop(), nil)
	if _, err := svc.RequestEmbedding(context.Background(), "a", "b"); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestCachedEmbedderReusesVectors(t *testing.T) {
	emb := &fakeEmbedder{dims: 4}
	cached, err := NewCachedEmbedder(emb, CacheOptions{Size: 2}, nil)
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cached.Embed(ctx, "same text", TaskRetrievalDocument); err != nil {
			t.Fatalf("Embed: %v", err)
		}
	}
	if emb.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", emb.calls)
	}
	if _, err := cached.Embed(ctx, "same text", TaskRetrievalQuery); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if emb.calls != 2 {
		t.Fatalf("task type must be part of the key, got %d calls", emb.calls)
	}

	emb.err = errors.New("down")
	if _, err := cached.Embed(ctx, "other", TaskRetrievalDocument); err == nil {
		t.Fatalf("expected provider error to surface")
	}
	if cached.Len() != 2 {
		t.Fatalf("failed embeddings must not be cached, len=%d", cached.Len())
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, ok := decodeVector(encodeVector(in))
	if !ok || len(out) != len(in) {
		t.Fatalf("decode failed")
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, ok := decodeVector([]byte{1, 2, 3}); ok {
		t.Fatalf("expected malformed payload to be rejected")
	}
}

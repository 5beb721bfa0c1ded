package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

// ErrEmbeddingUnavailable marks any embedding failure. Callers continue without
// semantic matching.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"

	DefaultMaxTokens = 8000
	charsPerToken    = 4
)

// Embedder is the external text embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text, taskType string) ([]float32, error)
	ModelName() string
}

// Metrics receives embedding request outcomes.
type Metrics interface {
	ObserveEmbedding(status string, dur time.Duration)
}

type Config struct {
	MaxTokens  int
	Dimensions int
}

// Fingerprint is the content identity of a lesson or submission.
type Fingerprint struct {
	Hash         string
	Embedding    []float32
	EmbeddingErr error
}

type Service struct {
	embedder Embedder
	cfg      Config
	log      *logger.Logger
	metrics  Metrics
}

func NewService(embedder Embedder, cfg Config, log *logger.Logger, metrics Metrics) *Service {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = types.EmbeddingDimensions
	}
	return &Service{embedder: embedder, cfg: cfg, log: log.With("service", "FingerprintService"), metrics: metrics}
}

func (s *Service) ComputeHash(body string) string { return ComputeHash(body) }

// RequestEmbedding embeds title and body as one document, truncated to the token budget.
// Every failure wraps ErrEmbeddingUnavailable.
func (s *Service) RequestEmbedding(ctx context.Context, title, body string) ([]float32, error) {
	start := time.Now()
	vec, err := s.requestEmbedding(ctx, title, body)
	status := "success"
	if err != nil {
		status = "unavailable"
		s.log.Warn("embedding unavailable", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveEmbedding(status, time.Since(start))
	}
	return vec, err
}

func (s *Service) requestEmbedding(ctx context.Context, title, body string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrEmbeddingUnavailable)
	}
	text := EmbeddingText(title, body, s.cfg.MaxTokens)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbeddingUnavailable)
	}
	vec, err := s.embedder.Embed(ctx, text, TaskRetrievalDocument)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vec) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingUnavailable, len(vec), s.cfg.Dimensions)
	}
	return vec, nil
}

// Fingerprint computes the hash and, when the provider answers, the embedding.
func (s *Service) Fingerprint(ctx context.Context, title, body string) Fingerprint {
	fp := Fingerprint{Hash: ComputeHash(body)}
	fp.Embedding, fp.EmbeddingErr = s.RequestEmbedding(ctx, title, body)
	return fp
}

// EmbeddingText joins title and body and truncates on a rune boundary to maxTokens.
func EmbeddingText(title, body string, maxTokens int) string {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	text := title
	if body != "" {
		if text != "" {
			text += "\n\n"
		}
		text += body
	}
	if maxTokens <= 0 {
		return text
	}
	limit := maxTokens * charsPerToken
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/lessonbank-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/modules/dedup"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/modules/search"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"github.com/yungbote/lessonbank-backend/internal/services"
)

type Services struct {
	// Modules
	Vocabulary  *vocabulary.Provider
	Fingerprint *fingerprint.Service
	Engine      *search.Engine
	Detector    *dedup.Detector

	// Aggregates
	Resolution domainagg.DuplicateResolutionAggregate
	Submission domainagg.SubmissionAggregate

	// Services
	Auth        services.AuthService
	Search      services.SearchService
	Duplicates  services.DuplicateService
	Submissions services.SubmissionService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	vocab := vocabulary.NewProvider(r.Vocabulary, cfg.Search.VocabularyTTL, log)
	fp := fingerprint.NewService(c.Embedder, fingerprint.Config{
		MaxTokens:  cfg.Embed.MaxTokens,
		Dimensions: cfg.Embed.Dimensions,
	}, log, metrics)
	engine := search.NewEngine(r.Search, vocab, search.Config{
		DefaultPageSize: cfg.Search.DefaultPageSize,
		MaxPageSize:     cfg.Search.MaxPageSize,
	}, log, metrics)

	runner := aggregates.NewRetryingTxRunner(db, cfg.Aggregates.TxAttempts, cfg.Aggregates.TxBackoff)
	base := aggregates.BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   runner,
		Hooks:    aggregates.NewObservabilityHooks(metrics),
		CASGuard: aggregates.NewCASGuard(db),
	}
	detector := dedup.NewDetector(r.Lesson, r.Submission, r.Similarity, fp, runner, dedup.Config{
		EmbeddingThreshold: cfg.Dedup.EmbeddingThreshold,
		EmbeddingLimit:     cfg.Dedup.EmbeddingLimit,
		TitleThreshold:     cfg.Dedup.TitleThreshold,
		TitleLimit:         cfg.Dedup.TitleLimit,
		MaxCandidates:      cfg.Dedup.MaxCandidates,
	}, log)

	resolution := aggregates.NewDuplicateResolutionAggregate(aggregates.DuplicateResolutionAggregateDeps{
		Base:        base,
		Lessons:     r.Lesson,
		Archives:    r.Archive,
		Resolutions: r.Resolution,
		Canonicals:  r.Canonical,
		Roles:       r.UserRole,
	})
	submission := aggregates.NewSubmissionAggregate(aggregates.SubmissionAggregateDeps{
		Base:        base,
		Submissions: r.Submission,
		Reviews:     r.Review,
		Versions:    r.Version,
		Lessons:     r.Lesson,
		Roles:       r.UserRole,
	})

	var extractor services.DocumentExtractor
	if c.Extractor != nil {
		extractor = c.Extractor
	}

	return Services{
		Vocabulary:  vocab,
		Fingerprint: fp,
		Engine:      engine,
		Detector:    detector,
		Resolution:  resolution,
		Submission:  submission,
		Auth:        services.NewAuthService(log, r.UserRole, cfg.Auth.JWTSecretKey, cfg.Auth.Issuer, cfg.Auth.AccessTTL),
		Search:      services.NewSearchService(log, engine, vocab),
		Duplicates:  services.NewDuplicateService(log, resolution, detector),
		Submissions: services.NewSubmissionService(log, r.Submission, r.Review, submission, detector, extractor, fp),
	}
}

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/platform/envutil"
	"github.com/yungbote/lessonbank-backend/internal/platform/gcp"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"github.com/yungbote/lessonbank-backend/internal/platform/openai"
)

type Clients struct {
	Redis     redis.UniversalClient
	Embedder  fingerprint.Embedder
	Extractor *gcp.DocumentExtractor
}

// wireClients builds the optional external clients. Each one is skipped when
// unconfigured; the engine degrades to hash-only fingerprints and caller-supplied
// text without them.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	// Redis
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("ping redis: %w", err)
		}
		out.Redis = rdb
	}

	// Openai
	oaCfg := openai.ConfigFromEnv()
	if cfg.Embed.Dimensions > 0 {
		oaCfg.Dimensions = cfg.Embed.Dimensions
	}
	if strings.TrimSpace(oaCfg.APIKey) != "" {
		oa, err := openai.NewClient(log, oaCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		cached, err := fingerprint.NewCachedEmbedder(oa, fingerprint.CacheOptions{
			Size:     cfg.Embed.CacheSize,
			Redis:    out.Redis,
			RedisTTL: cfg.Redis.EmbedTTL,
		}, log)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init embedding cache: %w", err)
		}
		out.Embedder = cached
	} else {
		log.Warn("OPENAI_API_KEY not set; semantic duplicate matching disabled")
	}

	// Gcp
	docCfg := gcp.DocumentConfigFromEnv()
	if docCfg.Enabled() || envutil.Bool("GCS_EXTRACTION_ENABLED", false) {
		ext, err := gcp.NewDocumentExtractor(ctx, log, docCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init document extractor: %w", err)
		}
		out.Extractor = ext
	} else {
		log.Warn("document extraction not configured; submissions must include title and body")
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Extractor != nil {
		_ = c.Extractor.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

// BackfillStore pages lessons that lack a content hash (or embedding) and writes
// fingerprints back.
type BackfillStore interface {
	ListMissingFingerprint(dbc dbctx.Context, afterID uuid.UUID, limit int, needEmbedding bool) ([]*types.Lesson, error)
	UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error
}

type BackfillOptions struct {
	BatchSize int
	Workers   int
	// WithEmbeddings also selects lessons that have a hash but no embedding.
	WithEmbeddings bool
	DryRun         bool
}

type BackfillStats struct {
	Scanned  int64 `json:"scanned"`
	Updated  int64 `json:"updated"`
	Embedded int64 `json:"embedded"`
	Failed   int64 `json:"failed"`
}

// Backfill fingerprints every lesson the store reports as missing one. Pages are
// walked by ascending id so rows that keep failing are not revisited.
func Backfill(ctx context.Context, log *logger.Logger, store BackfillStore, svc *Service, opts BackfillOptions) (BackfillStats, error) {
	if store == nil || svc == nil {
		return BackfillStats{}, errors.New("backfill: store and fingerprint service are required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return BackfillStats{}, fmt.Errorf("backfill pool: %w", err)
	}
	defer pool.Release()

	var (
		stats  BackfillStats
		cursor uuid.UUID
	)
	dbc := dbctx.New(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, err := store.ListMissingFingerprint(dbc, cursor, opts.BatchSize, opts.WithEmbeddings)
		if err != nil {
			return stats, fmt.Errorf("list lessons after %s: %w", cursor, err)
		}
		if len(page) == 0 {
			break
		}
		var wg sync.WaitGroup
		for _, l := range page {
			if l == nil {
				continue
			}
			atomic.AddInt64(&stats.Scanned, 1)
			cursor = l.ID
			lesson := l
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				backfillOne(ctx, log, store, svc, lesson, opts, &stats)
			})
			if submitErr != nil {
				wg.Done()
				atomic.AddInt64(&stats.Failed, 1)
				log.Warn("backfill submit failed", "lesson_id", lesson.ID, "error", submitErr)
			}
		}
		wg.Wait()
		log.Info("backfill page done", "cursor", cursor, "scanned", atomic.LoadInt64(&stats.Scanned), "updated", atomic.LoadInt64(&stats.Updated))
		if len(page) < opts.BatchSize {
			break
		}
	}
	return stats, nil
}

func backfillOne(ctx context.Context, log *logger.Logger, store BackfillStore, svc *Service, l *types.Lesson, opts BackfillOptions, stats *BackfillStats) {
	hash := l.ContentHash
	if hash == "" {
		hash = ComputeHash(l.ContentText)
	}
	var vec []float32
	if opts.WithEmbeddings && l.Embedding == nil {
		v, err := svc.RequestEmbedding(ctx, l.Title, l.ContentText)
		if err != nil {
			log.Warn("backfill embedding skipped", "lesson_id", l.ID, "error", err)
		} else {
			vec = v
		}
	}
	if hash == l.ContentHash && len(vec) == 0 {
		return
	}
	if opts.DryRun {
		atomic.AddInt64(&stats.Updated, 1)
		if len(vec) > 0 {
			atomic.AddInt64(&stats.Embedded, 1)
		}
		return
	}
	if err := store.UpdateFingerprint(dbctx.New(ctx), l.ID, hash, vec); err != nil {
		atomic.AddInt64(&stats.Failed, 1)
		log.Warn("backfill update failed", "lesson_id", l.ID, "error", err)
		return
	}
	atomic.AddInt64(&stats.Updated, 1)
	if len(vec) > 0 {
		atomic.AddInt64(&stats.Embedded, 1)
	}
}

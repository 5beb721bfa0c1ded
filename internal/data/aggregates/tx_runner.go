package aggregates

import (
	"context"
	"time"

	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// TxRunner provides a shared transaction boundary primitive for aggregate writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db       *gorm.DB
	attempts int
	backoff  time.Duration
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db, attempts: 1}
}

// NewRetryingTxRunner reruns the whole transaction when it fails with a
// serialization, deadlock or lock-timeout error, up to attempts times.
func NewRetryingTxRunner(db *gorm.DB, attempts int, backoff time.Duration) TxRunner {
	if attempts < 1 {
		attempts = 1
	}
	return &gormTxRunner{db: db, attempts: attempts, backoff: backoff}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
		if err == nil || attempt == r.attempts || !domainagg.IsCode(MapError("aggregate.tx", err), domainagg.CodeRetryable) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
	}
	return err
}

package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/yungbote/lessonbank-backend/internal/data/aggregates"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// errInjectedRollback forces the gorm transaction to roll back after FailCommit.
var errInjectedRollback = errors.New("injected rollback")

// InjectedTxRunner lets aggregate tests fail a write at a chosen phase.
// With DB set the body runs in a real transaction that is rolled back on any
// failure, so tests can assert that nothing was persisted. Without DB the body
// gets a context with no Tx.
type InjectedTxRunner struct {
	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error

	mu            sync.Mutex
	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failBeforeBody, failCommit := r.FailBegin, r.FailBeforeBody, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.count(&r.RollbackCalls)
		return failBeforeBody
	}

	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := r.body(dbctx.Context{Ctx: ctx, Tx: tx}, fn); err != nil {
				return err
			}
			if failCommit != nil {
				return errInjectedRollback
			}
			return nil
		})
		if errors.Is(err, errInjectedRollback) {
			err = failCommit
		}
	} else {
		err = r.body(dbctx.Context{Ctx: ctx}, fn)
		if err == nil && failCommit != nil {
			err = failCommit
		}
	}

	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) body(dbc dbctx.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbc)
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries a request context and, when inside a unit of work, the open transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New returns a transaction-less context.
func New(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// Context returns Ctx or context.Background when unset.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// DB returns the open transaction, or fallback when none is attached,
// bound to the carried context.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = fallback
	}
	if db == nil {
		return nil
	}
	return db.WithContext(c.Context())
}

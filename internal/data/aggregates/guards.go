package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// CASGuard applies compare-and-set updates inside aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Context()), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Context()), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByVersion applies updates only when versionColumn still equals expected,
// and bumps it by one in the same statement.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table, versionColumn string, id uuid.UUID, expected int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	versionColumn = strings.TrimSpace(versionColumn)
	if table == "" || versionColumn == "" || id == uuid.Nil {
		return false, ValidationError("table, version column and id are required for UpdateByVersion")
	}
	if expected < 0 {
		return false, ValidationError("expected version must be >= 0")
	}
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set[versionColumn] = gorm.Expr(versionColumn+" + 1")
	res := db.Table(table).
		Where(fmt.Sprintf("id = ? AND %s = ?", versionColumn), id, expected).
		Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateByStatus applies updates only while the row is in one of allowedStatuses.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByStatus")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, allowedStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireStatusAllowed reports a conflict naming current when it is not in allowed.
func RequireStatusAllowed(current string, allowed ...string) error {
	current = strings.TrimSpace(current)
	if len(allowed) == 0 {
		return ValidationError("allowed statuses cannot be empty")
	}
	for _, s := range allowed {
		if strings.EqualFold(current, strings.TrimSpace(s)) {
			return nil
		}
	}
	return ConflictError(fmt.Sprintf("status %q does not allow this transition (want one of %s)", current, strings.Join(allowed, ", ")))
}

package lessons

import (
	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResolutionRepo interface {
	Create(dbc dbctx.Context, row *types.DuplicateResolution) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DuplicateResolution, error)
	ListByGroup(dbc dbctx.Context, groupID string) ([]*types.DuplicateResolution, error)
}

type resolutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResolutionRepo(db *gorm.DB, baseLog *logger.Logger) ResolutionRepo {
	return &resolutionRepo{db: db, log: baseLog.With("repo", "ResolutionRepo")}
}

func (r *resolutionRepo) Create(dbc dbctx.Context, row *types.DuplicateResolution) error {
	return dbc.DB(r.db).Create(row).Error
}

func (r *resolutionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DuplicateResolution, error) {
	var rows []*types.DuplicateResolution
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *resolutionRepo) ListByGroup(dbc dbctx.Context, groupID string) ([]*types.DuplicateResolution, error) {
	var out []*types.DuplicateResolution
	if err := dbc.DB(r.db).
		Where("group_id = ? OR parent_group_id = ?", groupID, groupID).
		Order("resolved_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type CanonicalRepo interface {
	Upsert(dbc dbctx.Context, row *types.CanonicalLesson) error
	GetByDuplicateID(dbc dbctx.Context, duplicateID uuid.UUID) (*types.CanonicalLesson, error)
	ListByCanonicalID(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.CanonicalLesson, error)
}

type canonicalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCanonicalRepo(db *gorm.DB, baseLog *logger.Logger) CanonicalRepo {
	return &canonicalRepo{db: db, log: baseLog.With("repo", "CanonicalRepo")}
}

// Upsert keeps one mapping per duplicate; re-linking replaces the canonical pointer.
func (r *canonicalRepo) Upsert(dbc dbctx.Context, row *types.CanonicalLesson) error {
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "duplicate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_id", "similarity_score", "resolution_type", "resolved_by"}),
	}).Create(row).Error
}

func (r *canonicalRepo) GetByDuplicateID(dbc dbctx.Context, duplicateID uuid.UUID) (*types.CanonicalLesson, error) {
	var rows []*types.CanonicalLesson
	if err := dbc.DB(r.db).Where("duplicate_id = ?", duplicateID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *canonicalRepo) ListByCanonicalID(dbc dbctx.Context, canonicalID uuid.UUID) ([]*types.CanonicalLesson, error) {
	var out []*types.CanonicalLesson
	if err := dbc.DB(r.db).Where("canonical_id = ?", canonicalID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

package lessons

import (
	"strings"

	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// ArchiveRepo is append-only apart from DeleteByID.
type ArchiveRepo interface {
	Create(dbc dbctx.Context, rows []*types.LessonArchive) ([]*types.LessonArchive, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LessonArchive, error)
	ListByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.LessonArchive, error)
	ListByGroup(dbc dbctx.Context, groupID string) ([]*types.LessonArchive, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type archiveRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArchiveRepo(db *gorm.DB, baseLog *logger.Logger) ArchiveRepo {
	return &archiveRepo{db: db, log: baseLog.With("repo", "ArchiveRepo")}
}

func (r *archiveRepo) Create(dbc dbctx.Context, rows []*types.LessonArchive) ([]*types.LessonArchive, error) {
	if len(rows) == 0 {
		return []*types.LessonArchive{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *archiveRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LessonArchive, error) {
	var rows []*types.LessonArchive
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *archiveRepo) ListByLessonIDs(dbc dbctx.Context, lessonIDs []uuid.UUID) ([]*types.LessonArchive, error) {
	var out []*types.LessonArchive
	if len(lessonIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("lesson_id IN ?", lessonIDs).Order("archived_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *archiveRepo) ListByGroup(dbc dbctx.Context, groupID string) ([]*types.LessonArchive, error) {
	var out []*types.LessonArchive
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("resolution_group_id = ?", groupID).Order("archived_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *archiveRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.LessonArchive{})
	return res.RowsAffected, res.Error
}

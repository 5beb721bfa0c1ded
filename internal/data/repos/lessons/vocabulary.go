package lessons

import (
	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VocabularyRepo interface {
	ListSynonyms(dbc dbctx.Context) ([]*types.SynonymEntry, error)
	ListHierarchy(dbc dbctx.Context) ([]*types.CulturalHierarchyNode, error)
	UpsertSynonyms(dbc dbctx.Context, rows []*types.SynonymEntry) error
	UpsertHierarchy(dbc dbctx.Context, rows []*types.CulturalHierarchyNode) error
}

type vocabularyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVocabularyRepo(db *gorm.DB, baseLog *logger.Logger) VocabularyRepo {
	return &vocabularyRepo{db: db, log: baseLog.With("repo", "VocabularyRepo")}
}

func (r *vocabularyRepo) ListSynonyms(dbc dbctx.Context) ([]*types.SynonymEntry, error) {
	var out []*types.SynonymEntry
	if err := dbc.DB(r.db).Order("term ASC, synonym_type ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyRepo) ListHierarchy(dbc dbctx.Context) ([]*types.CulturalHierarchyNode, error) {
	var out []*types.CulturalHierarchyNode
	if err := dbc.DB(r.db).Order("parent ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *vocabularyRepo) UpsertSynonyms(dbc dbctx.Context, rows []*types.SynonymEntry) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "term"}, {Name: "synonym_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"synonyms", "updated_at"}),
	}).Create(&rows).Error
}

func (r *vocabularyRepo) UpsertHierarchy(dbc dbctx.Context, rows []*types.CulturalHierarchyNode) error {
	if len(rows) == 0 {
		return nil
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "parent"}},
		DoUpdates: clause.AssignmentColumns([]string{"children", "updated_at"}),
	}).Create(&rows).Error
}

type UserRoleRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserRole, error)
	Upsert(dbc dbctx.Context, row *types.UserRole) error
}

type userRoleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRoleRepo(db *gorm.DB, baseLog *logger.Logger) UserRoleRepo {
	return &userRoleRepo{db: db, log: baseLog.With("repo", "UserRoleRepo")}
}

func (r *userRoleRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserRole, error) {
	var rows []*types.UserRole
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *userRoleRepo) Upsert(dbc dbctx.Context, row *types.UserRole) error {
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "is_active", "updated_at"}),
	}).Create(row).Error
}

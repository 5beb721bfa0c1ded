package lessons

import (
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SimilarityRepo interface {
	Upsert(dbc dbctx.Context, rows []*types.SubmissionSimilarity) error
	ListBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.SubmissionSimilarity, error)
	DeleteBySubmission(dbc dbctx.Context, submissionID uuid.UUID) error
}

type similarityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSimilarityRepo(db *gorm.DB, baseLog *logger.Logger) SimilarityRepo {
	return &similarityRepo{db: db, log: baseLog.With("repo", "SimilarityRepo")}
}

func (r *similarityRepo) Upsert(dbc dbctx.Context, rows []*types.SubmissionSimilarity) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = now
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title_similarity",
			"content_similarity",
			"metadata_overlap_score",
			"combined_score",
			"match_type",
			"updated_at",
		}),
	}).Create(&rows).Error
}

func (r *similarityRepo) ListBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.SubmissionSimilarity, error) {
	var out []*types.SubmissionSimilarity
	if err := dbc.DB(r.db).
		Where("submission_id = ?", submissionID).
		Order("combined_score DESC, lesson_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *similarityRepo) DeleteBySubmission(dbc dbctx.Context, submissionID uuid.UUID) error {
	return dbc.DB(r.db).Where("submission_id = ?", submissionID).Delete(&types.SubmissionSimilarity{}).Error
}

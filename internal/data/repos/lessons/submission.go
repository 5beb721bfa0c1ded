package lessons

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubmissionRepo interface {
	Create(dbc dbctx.Context, row *types.Submission) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error)
	ListByStatus(dbc dbctx.Context, statuses []string, limit, offset int) ([]*types.Submission, error)
	UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Create(dbc dbctx.Context, row *types.Submission) error {
	return dbc.DB(r.db).Create(row).Error
}

func (r *submissionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	return r.get(dbc.DB(r.db), id)
}

func (r *submissionRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Submission, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *submissionRepo) get(q *gorm.DB, id uuid.UUID) (*types.Submission, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.Submission
	if err := q.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *submissionRepo) ListByStatus(dbc dbctx.Context, statuses []string, limit, offset int) ([]*types.Submission, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := dbc.DB(r.db).Model(&types.Submission{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*types.Submission
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error {
	updates := map[string]interface{}{"content_hash": hash}
	if len(embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(embedding)
	}
	return dbc.DB(r.db).Model(&types.Submission{}).Where("id = ?", id).Updates(updates).Error
}

type ReviewRepo interface {
	Create(dbc dbctx.Context, row *types.Review) error
	ListBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.Review, error)
}

type reviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewRepo(db *gorm.DB, baseLog *logger.Logger) ReviewRepo {
	return &reviewRepo{db: db, log: baseLog.With("repo", "ReviewRepo")}
}

func (r *reviewRepo) Create(dbc dbctx.Context, row *types.Review) error {
	return dbc.DB(r.db).Create(row).Error
}

func (r *reviewRepo) ListBySubmission(dbc dbctx.Context, submissionID uuid.UUID) ([]*types.Review, error) {
	var out []*types.Review
	if err := dbc.DB(r.db).Where("submission_id = ?", submissionID).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type VersionRepo interface {
	Create(dbc dbctx.Context, row *types.LessonVersion) error
	ListByLesson(dbc dbctx.Context, lessonID uuid.UUID) ([]*types.LessonVersion, error)
}

type versionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionRepo(db *gorm.DB, baseLog *logger.Logger) VersionRepo {
	return &versionRepo{db: db, log: baseLog.With("repo", "VersionRepo")}
}

func (r *versionRepo) Create(dbc dbctx.Context, row *types.LessonVersion) error {
	return dbc.DB(r.db).Create(row).Error
}

func (r *versionRepo) ListByLesson(dbc dbctx.Context, lessonID uuid.UUID) ([]*types.LessonVersion, error) {
	var out []*types.LessonVersion
	if err := dbc.DB(r.db).Where("lesson_id = ?", lessonID).Order("version_number ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

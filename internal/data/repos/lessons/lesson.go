package lessons

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LessonRepo interface {
	Create(dbc dbctx.Context, rows []*types.Lesson) ([]*types.Lesson, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.Lesson, error)
	LockByIDs(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.Lesson, error)
	Save(dbc dbctx.Context, row *types.Lesson) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error
	FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
	ListMissingFingerprint(dbc dbctx.Context, afterID uuid.UUID, limit int, needEmbedding bool) ([]*types.Lesson, error)

	FindByContentHash(dbc dbctx.Context, hash string, exclude []uuid.UUID) ([]*types.Lesson, error)
	NearestByEmbedding(dbc dbctx.Context, vec []float32, threshold float64, limit int, exclude []uuid.UUID) ([]NearestLesson, error)
	SimilarTitles(dbc dbctx.Context, title string, minSimilarity float64, limit int, exclude []uuid.UUID) ([]NearestLesson, error)
}

// NearestLesson is a catalog row scored against a query vector or title.
type NearestLesson struct {
	Lesson     *types.Lesson
	Similarity float64
	Distance   float64
}

type lessonRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonRepo(db *gorm.DB, baseLog *logger.Logger) LessonRepo {
	return &lessonRepo{db: db, log: baseLog.With("repo", "LessonRepo")}
}

func (r *lessonRepo) Create(dbc dbctx.Context, rows []*types.Lesson) ([]*types.Lesson, error) {
	if len(rows) == 0 {
		return []*types.Lesson{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *lessonRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lesson, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Lesson
	err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *lessonRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.Lesson, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, nil
	}
	var row types.Lesson
	err := dbc.DB(r.db).Where("external_id = ?", externalID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LockByIDs loads ids with FOR UPDATE. Missing ids are absent from the map.
func (r *lessonRepo) LockByIDs(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]*types.Lesson, error) {
	out := map[uuid.UUID]*types.Lesson{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*types.Lesson
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *lessonRepo) Save(dbc dbctx.Context, row *types.Lesson) error {
	if row == nil || row.ID == uuid.Nil {
		return errors.New("lesson row with id required")
	}
	return dbc.DB(r.db).Save(row).Error
}

func (r *lessonRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.Lesson{}).Where("id = ?", id).Updates(updates).Error
}

func (r *lessonRepo) UpdateFingerprint(dbc dbctx.Context, id uuid.UUID, hash string, embedding []float32) error {
	updates := map[string]interface{}{"content_hash": hash}
	if len(embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(embedding)
	}
	return r.UpdateFields(dbc, id, updates)
}

func (r *lessonRepo) FullDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.Lesson{})
	return res.RowsAffected, res.Error
}

func (r *lessonRepo) ListMissingFingerprint(dbc dbctx.Context, afterID uuid.UUID, limit int, needEmbedding bool) ([]*types.Lesson, error) {
	if limit <= 0 {
		limit = 200
	}
	q := dbc.DB(r.db).Model(&types.Lesson{})
	if needEmbedding {
		q = q.Where("(content_hash IS NULL OR content_hash = '' OR embedding IS NULL)")
	} else {
		q = q.Where("(content_hash IS NULL OR content_hash = '')")
	}
	if afterID != uuid.Nil {
		q = q.Where("id > ?", afterID)
	}
	var out []*types.Lesson
	if err := q.Order("id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lessonRepo) FindByContentHash(dbc dbctx.Context, hash string, exclude []uuid.UUID) ([]*types.Lesson, error) {
	var out []*types.Lesson
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return out, nil
	}
	q := dbc.DB(r.db).Where("content_hash = ?", hash)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	if err := q.Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type nearestRow struct {
	types.Lesson
	Distance float64 `gorm:"column:distance"`
}

// NearestByEmbedding returns lessons with similarity >= threshold, best match first.
// similarity = 1 - cosine distance.
func (r *lessonRepo) NearestByEmbedding(dbc dbctx.Context, vec []float32, threshold float64, limit int, exclude []uuid.UUID) ([]NearestLesson, error) {
	out := []NearestLesson{}
	if len(vec) == 0 || limit <= 0 {
		return out, nil
	}
	query := pgvector.NewVector(vec)
	q := dbc.DB(r.db).
		Table("lesson").
		Select("lesson.*, (embedding <=> ?) AS distance", query).
		Where("embedding IS NOT NULL").
		Where("1 - (embedding <=> ?) >= ?", query, threshold)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var rows []nearestRow
	if err := q.Order("distance ASC, id ASC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		l := rows[i].Lesson
		out = append(out, NearestLesson{Lesson: &l, Distance: rows[i].Distance, Similarity: 1 - rows[i].Distance})
	}
	return out, nil
}

type titleRow struct {
	types.Lesson
	Score float64 `gorm:"column:score"`
}

// SimilarTitles is the lexical fallback used when no embedding is available.
func (r *lessonRepo) SimilarTitles(dbc dbctx.Context, title string, minSimilarity float64, limit int, exclude []uuid.UUID) ([]NearestLesson, error) {
	out := []NearestLesson{}
	title = strings.TrimSpace(title)
	if title == "" || limit <= 0 {
		return out, nil
	}
	q := dbc.DB(r.db).
		Table("lesson").
		Select("lesson.*, similarity(title, ?) AS score", title).
		Where("title % ?", title).
		Where("similarity(title, ?) >= ?", title, minSimilarity)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var rows []titleRow
	if err := q.Order("score DESC, id ASC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		l := rows[i].Lesson
		out = append(out, NearestLesson{Lesson: &l, Similarity: rows[i].Score, Distance: 1 - rows[i].Score})
	}
	return out, nil
}

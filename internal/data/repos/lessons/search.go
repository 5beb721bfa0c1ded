package lessons

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LessonQuery is a fully expanded search request. Expression is the synonym
// expanded websearch expression; Raw is the caller's text used for fuzzy matching.
type LessonQuery struct {
	Expression string
	Raw        string
	Filters    map[types.Facet][]string
}

// Predicate is the WHERE clause shared by the count and page statements.
type Predicate struct {
	SQL  string
	Args []interface{}
}

// Statement is a rendered SQL statement with positional args.
type Statement struct {
	SQL  string
	Args []interface{}
}

// SearchHit is a lesson summary row with its relevance score.
type SearchHit struct {
	ID                uuid.UUID                            `gorm:"column:id" json:"id"`
	ExternalID        string                               `gorm:"column:external_id" json:"external_id"`
	Title             string                               `gorm:"column:title" json:"title"`
	Summary           string                               `gorm:"column:summary" json:"summary"`
	FileLink          string                               `gorm:"column:file_link" json:"file_link,omitempty"`
	GradeLevels       datatypes.JSONSlice[string]          `gorm:"column:grade_levels" json:"grade_levels"`
	Metadata          datatypes.JSONType[types.Attributes] `gorm:"column:metadata" json:"metadata"`
	ConfidenceOverall float64                              `gorm:"column:confidence_overall" json:"confidence_overall"`
	FlaggedForReview  bool                                 `gorm:"column:flagged_for_review" json:"flagged_for_review"`
	HasVersions       bool                                 `gorm:"column:has_versions" json:"has_versions"`
	CreatedAt         time.Time                            `gorm:"column:created_at" json:"created_at"`
	Rank              float64                              `gorm:"column:rank" json:"rank"`
}

// FacetCount is the number of matching lessons carrying Value.
type FacetCount struct {
	Value string `gorm:"column:value" json:"value"`
	Count int64  `gorm:"column:count" json:"count"`
}

const searchColumns = "lesson.id, lesson.external_id, lesson.title, lesson.summary, lesson.file_link, " +
	"lesson.grade_levels, lesson.metadata, lesson.confidence_overall, lesson.flagged_for_review, " +
	"lesson.has_versions, lesson.created_at"

const searchOrder = "rank DESC, lesson.confidence_overall DESC, lesson.title ASC, lesson.id ASC"

type SearchRepo interface {
	Search(dbc dbctx.Context, q LessonQuery, limit, offset int) ([]SearchHit, int64, error)
	Facets(dbc dbctx.Context, q LessonQuery, facet types.Facet, limit int) ([]FacetCount, error)
}

type searchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSearchRepo(db *gorm.DB, baseLog *logger.Logger) SearchRepo {
	return &searchRepo{db: db, log: baseLog.With("repo", "SearchRepo")}
}

func (r *searchRepo) Search(dbc dbctx.Context, q LessonQuery, limit, offset int) ([]SearchHit, int64, error) {
	pred := BuildPredicate(q)
	count := CountStatement(pred)
	var total int64
	if err := dbc.DB(r.db).Raw(count.SQL, count.Args...).Scan(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	hits := []SearchHit{}
	if total == 0 || int64(offset) >= total {
		return hits, total, nil
	}
	page := PageStatement(pred, q, limit, offset)
	if err := dbc.DB(r.db).Raw(page.SQL, page.Args...).Scan(&hits).Error; err != nil {
		return nil, 0, fmt.Errorf("page lessons: %w", err)
	}
	return hits, total, nil
}

func (r *searchRepo) Facets(dbc dbctx.Context, q LessonQuery, facet types.Facet, limit int) ([]FacetCount, error) {
	stmt, err := FacetStatement(BuildPredicate(q), facet, limit)
	if err != nil {
		return nil, err
	}
	out := []FacetCount{}
	if err := dbc.DB(r.db).Raw(stmt.SQL, stmt.Args...).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("facet %s: %w", facet, err)
	}
	return out, nil
}

// BuildPredicate is the only place search WHERE clauses are constructed.
// Facets are visited in a fixed order so identical queries render identical SQL.
func BuildPredicate(q LessonQuery) Predicate {
	parts := []string{}
	args := []interface{}{}
	for _, f := range types.ArrayFacets {
		vals := cleanValues(q.Filters[f])
		if len(vals) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(lesson.%s) AS fv(v) WHERE fv.v IN ?)", f))
		args = append(args, vals)
	}
	for _, f := range types.ScalarFacets {
		vals := cleanValues(q.Filters[f])
		if len(vals) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("lesson.%s IN ?", f))
		args = append(args, vals)
	}
	if expr := strings.TrimSpace(q.Expression); expr != "" {
		raw := rawOrExpr(q)
		parts = append(parts,
			"(lesson.search_vector @@ websearch_to_tsquery('english', ?) OR lesson.title % ? OR lesson.summary % ?)")
		args = append(args, expr, raw, raw)
	}
	if len(parts) == 0 {
		return Predicate{SQL: "TRUE", Args: args}
	}
	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}
}

func CountStatement(p Predicate) Statement {
	return Statement{
		SQL:  "SELECT COUNT(*) FROM lesson WHERE " + p.SQL,
		Args: append([]interface{}{}, p.Args...),
	}
}

// PageStatement ranks by the strongest of the three keyword signals.
func PageStatement(p Predicate, q LessonQuery, limit, offset int) Statement {
	rankSQL := "0::float8"
	args := []interface{}{}
	if expr := strings.TrimSpace(q.Expression); expr != "" {
		raw := rawOrExpr(q)
		rankSQL = "GREATEST(" +
			"ts_rank_cd(lesson.search_vector, websearch_to_tsquery('english', ?), 32), " +
			"similarity(lesson.title, ?), " +
			"similarity(lesson.summary, ?) * 0.8)"
		args = append(args, expr, raw, raw)
	}
	args = append(args, p.Args...)
	args = append(args, limit, offset)
	return Statement{
		SQL: "SELECT " + searchColumns + ", " + rankSQL + " AS rank FROM lesson WHERE " + p.SQL +
			" ORDER BY " + searchOrder + " LIMIT ? OFFSET ?",
		Args: args,
	}
}

func FacetStatement(p Predicate, facet types.Facet, limit int) (Statement, error) {
	if !facet.Valid() {
		return Statement{}, fmt.Errorf("unknown facet %q", facet)
	}
	if limit <= 0 {
		limit = 50
	}
	args := append([]interface{}{}, p.Args...)
	args = append(args, limit)
	if facet.IsArray() {
		return Statement{
			SQL: fmt.Sprintf("SELECT facet.v AS value, COUNT(*) AS count FROM lesson "+
				"CROSS JOIN LATERAL jsonb_array_elements_text(lesson.%s) AS facet(v) WHERE %s "+
				"GROUP BY facet.v ORDER BY count DESC, value ASC LIMIT ?", facet, p.SQL),
			Args: args,
		}, nil
	}
	return Statement{
		SQL: fmt.Sprintf("SELECT lesson.%[1]s AS value, COUNT(*) AS count FROM lesson WHERE %[2]s "+
			"AND lesson.%[1]s <> '' GROUP BY lesson.%[1]s ORDER BY count DESC, value ASC LIMIT ?", facet, p.SQL),
		Args: args,
	}, nil
}

func rawOrExpr(q LessonQuery) string {
	if raw := strings.TrimSpace(q.Raw); raw != "" {
		return raw
	}
	return strings.TrimSpace(q.Expression)
}

func cleanValues(in []string) []string {
	out := types.UnionStrings(in)
	if len(out) == 0 {
		return nil
	}
	return out
}

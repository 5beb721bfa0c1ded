package db

import (
	"fmt"

	"github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"gorm.io/gorm"
)

// AutoMigrateAll creates or updates every engine table. It is dialect neutral.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(lessons.AllModels()...)
}

// Migrate runs AutoMigrateAll and, on Postgres, the search and vector indexes.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := EnsureSearchIndexes(db); err != nil {
		return err
	}
	return EnsureDedupIndexes(db)
}

func EnsureExtensions(db *gorm.DB) error {
	for _, ext := range []string{"uuid-ossp", "pg_trgm", "vector"} {
		if err := db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS "%s";`, ext)).Error; err != nil {
			return fmt.Errorf("enable %s: %w", ext, err)
		}
	}
	return nil
}

// EnsureSearchIndexes installs the weighted lesson text index and trigram indexes.
// Field weights: A title; B summary, ingredients, tags; C skills, themes, culture; D body.
func EnsureSearchIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		ALTER TABLE lesson ADD COLUMN IF NOT EXISTS search_vector tsvector
		GENERATED ALWAYS AS (
			setweight(to_tsvector('english'::regconfig, coalesce(title, '')), 'A') ||
			setweight(to_tsvector('english'::regconfig,
				coalesce(summary, '') || ' ' || coalesce(main_ingredients::text, '') || ' ' || coalesce(tags::text, '')), 'B') ||
			setweight(to_tsvector('english'::regconfig,
				coalesce(skills::text, '') || ' ' || coalesce(thematic_categories::text, '') || ' ' || coalesce(cultural_heritage::text, '')), 'C') ||
			setweight(to_tsvector('english'::regconfig, coalesce(content_text, '')), 'D')
		) STORED;
	`).Error; err != nil {
		return fmt.Errorf("add lesson.search_vector: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_lesson_search_vector ON lesson USING GIN (search_vector);`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_search_vector: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_lesson_title_trgm ON lesson USING GIN (title gin_trgm_ops);`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_title_trgm: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_lesson_summary_trgm ON lesson USING GIN (summary gin_trgm_ops);`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_summary_trgm: %w", err)
	}
	for _, col := range []string{"grade_levels", "thematic_categories", "cultural_heritage", "season_timing", "cooking_method"} {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_lesson_%s_gin ON lesson USING GIN (%s jsonb_path_ops);`, col, col)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create idx_lesson_%s_gin: %w", col, err)
		}
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_lesson_order
		ON lesson (confidence_overall DESC, title ASC, id ASC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_order: %w", err)
	}
	return nil
}

// EnsureDedupIndexes installs the approximate nearest neighbour index used by embedding lookups.
func EnsureDedupIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_lesson_embedding_hnsw
		ON lesson USING hnsw (embedding vector_cosine_ops)
		WHERE embedding IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_embedding_hnsw: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_lesson_content_hash_nonempty
		ON lesson (content_hash)
		WHERE content_hash <> '';
	`).Error; err != nil {
		return fmt.Errorf("create idx_lesson_content_hash_nonempty: %w", err)
	}
	return nil
}

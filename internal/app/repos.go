package app

import (
	"gorm.io/gorm"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type Repos struct {
	Lesson     repos.LessonRepo
	Archive    repos.ArchiveRepo
	Resolution repos.ResolutionRepo
	Canonical  repos.CanonicalRepo
	Search     repos.SearchRepo
	Similarity repos.SimilarityRepo
	Submission repos.SubmissionRepo
	Review     repos.ReviewRepo
	Version    repos.VersionRepo
	Vocabulary repos.VocabularyRepo
	UserRole   repos.UserRoleRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Lesson:     repos.NewLessonRepo(db, log),
		Archive:    repos.NewArchiveRepo(db, log),
		Resolution: repos.NewResolutionRepo(db, log),
		Canonical:  repos.NewCanonicalRepo(db, log),
		Search:     repos.NewSearchRepo(db, log),
		Similarity: repos.NewSimilarityRepo(db, log),
		Submission: repos.NewSubmissionRepo(db, log),
		Review:     repos.NewReviewRepo(db, log),
		Version:    repos.NewVersionRepo(db, log),
		Vocabulary: repos.NewVocabularyRepo(db, log),
		UserRole:   repos.NewUserRoleRepo(db, log),
	}
}

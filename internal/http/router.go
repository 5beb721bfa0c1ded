package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	httpH "github.com/yungbote/lessonbank-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lessonbank-backend/internal/http/middleware"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics

	SearchHandler     *httpH.SearchHandler
	SubmissionHandler *httpH.SubmissionHandler
	DuplicateHandler  *httpH.DuplicateHandler
	HealthHandler     *httpH.HealthHandler

	CORSOrigins   []string
	RatePerSecond float64
	RateBurst     int
	TracingName   string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingName != "" {
		r.Use(otelgin.Middleware(cfg.TracingName))
	}
	r.Use(httpMW.RequestIdentity())
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	r.Use(httpMW.Instrument(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}
	api.Use(httpMW.RateLimiter(cfg.RatePerSecond, cfg.RateBurst))

	// Search
	if cfg.SearchHandler != nil {
		api.POST("/search", cfg.SearchHandler.Search)
		api.POST("/search/facets", cfg.SearchHandler.Facets)
	}

	// Submissions
	if cfg.SubmissionHandler != nil {
		api.POST("/submissions", cfg.SubmissionHandler.Create)
		api.GET("/submissions/:id", cfg.SubmissionHandler.Get)
	}

	// Reviewer surface
	reviewers := api.Group("/")
	if cfg.AuthMiddleware != nil {
		reviewers.Use(cfg.AuthMiddleware.RequireRole(types.CanResolve))
	}
	{
		if cfg.SearchHandler != nil {
			reviewers.POST("/vocabulary/reload", cfg.SearchHandler.ReloadVocabulary)
		}
		if cfg.SubmissionHandler != nil {
			reviewers.GET("/submissions", cfg.SubmissionHandler.List)
			reviewers.GET("/submissions/:id/reviews", cfg.SubmissionHandler.Reviews)
			reviewers.GET("/submissions/:id/duplicates", cfg.SubmissionHandler.Duplicates)
			reviewers.POST("/submissions/:id/start-review", cfg.SubmissionHandler.StartReview)
			reviewers.POST("/submissions/:id/review", cfg.SubmissionHandler.RecordReview)
		}
		if cfg.DuplicateHandler != nil {
			reviewers.GET("/lessons/:id/duplicates", cfg.DuplicateHandler.LessonDuplicates)
			reviewers.POST("/duplicate-groups/resolve", cfg.DuplicateHandler.Resolve)
			reviewers.POST("/canonical-links", cfg.DuplicateHandler.LinkCanonical)
			reviewers.DELETE("/archives/:id", cfg.DuplicateHandler.DeleteArchive)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})
	return r
}

package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lessonbank-backend/internal/http"
	httpH "github.com/yungbote/lessonbank-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lessonbank-backend/internal/http/middleware"
	"github.com/yungbote/lessonbank-backend/internal/observability"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health     *httpH.HealthHandler
	Search     *httpH.SearchHandler
	Submission *httpH.SubmissionHandler
	Duplicate  *httpH.DuplicateHandler
}

func wireHandlers(log *logger.Logger, services Services, sqlDB *sql.DB) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	return Handlers{
		Health:     httpH.NewHealthHandler(pinger),
		Search:     httpH.NewSearchHandler(services.Search),
		Submission: httpH.NewSubmissionHandler(services.Submissions, services.Duplicates),
		Duplicate:  httpH.NewDuplicateHandler(services.Duplicates),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	if cfg.Server.Mode == "production" || cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	tracingName := ""
	if cfg.Telemetry.Tracing {
		tracingName = cfg.Telemetry.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		Log:               log,
		AuthMiddleware:    middleware.Auth,
		Metrics:           metrics,
		SearchHandler:     handlers.Search,
		SubmissionHandler: handlers.Submission,
		DuplicateHandler:  handlers.Duplicate,
		HealthHandler:     handlers.Health,
		CORSOrigins:       cfg.Server.CORSOrigins,
		RatePerSecond:     cfg.Server.RatePerSecond,
		RateBurst:         cfg.Server.RateBurst,
		TracingName:       tracingName,
	})
}

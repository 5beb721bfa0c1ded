// Package cmd holds the lessonctl maintenance commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/lessonbank-backend/internal/app"
	"github.com/yungbote/lessonbank-backend/internal/data/db"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

var configDirs []string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lessonctl",
		Short:         "Maintenance tasks for the lesson catalog",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringSliceVar(&configDirs, "config-dir", []string{".", "configs"}, "Directories searched for config.yaml")

	cmd.AddCommand(newSeedVocabularyCmd())
	cmd.AddCommand(newBackfillFingerprintsCmd())
	return cmd
}

// env is the shared setup for commands that talk to Postgres.
type env struct {
	log *logger.Logger
	cfg app.Config
	pg  *db.PostgresService
}

func openEnv() (*env, error) {
	mode := os.Getenv("LOG_MODE")
	if mode == "" {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := app.ReadConfig(configDirs...)
	if err != nil {
		log.Sync()
		return nil, err
	}
	pg, err := db.NewPostgresService(cfg.Postgres.ServiceConfig(), log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	return &env{log: log, cfg: cfg, pg: pg}, nil
}

func (e *env) Close() {
	if e == nil {
		return
	}
	if e.pg != nil {
		_ = e.pg.Close()
	}
	e.log.Sync()
}

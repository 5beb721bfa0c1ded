package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/fingerprint"
	"github.com/yungbote/lessonbank-backend/internal/platform/openai"
)

func newBackfillFingerprintsCmd() *cobra.Command {
	var opts fingerprint.BackfillOptions
	cmd := &cobra.Command{
		Use:   "backfill-fingerprints",
		Short: "Compute content hashes (and optionally embeddings) for lessons missing them",
		Long: `Walks the lesson table in id order and fills content_hash for every row
without one. With --embeddings it also requests embeddings for rows that have
none; this needs OPENAI_API_KEY. Embedding failures are logged and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackfillFingerprints(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 200, "Lessons fetched per page")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Concurrent fingerprint workers")
	cmd.Flags().BoolVar(&opts.WithEmbeddings, "embeddings", false, "Also backfill missing embeddings")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Compute fingerprints without writing them")
	return cmd
}

func runBackfillFingerprints(ctx context.Context, cmd *cobra.Command, opts fingerprint.BackfillOptions) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var embedder fingerprint.Embedder
	if opts.WithEmbeddings {
		oaCfg := openai.ConfigFromEnv()
		if e.cfg.Embed.Dimensions > 0 {
			oaCfg.Dimensions = e.cfg.Embed.Dimensions
		}
		if oaCfg.APIKey == "" {
			return fmt.Errorf("--embeddings requires OPENAI_API_KEY")
		}
		client, err := openai.NewClient(e.log, oaCfg)
		if err != nil {
			return fmt.Errorf("init openai client: %w", err)
		}
		embedder = client
	}
	svc := fingerprint.NewService(embedder, fingerprint.Config{
		MaxTokens:  e.cfg.Embed.MaxTokens,
		Dimensions: e.cfg.Embed.Dimensions,
	}, e.log, nil)

	stats, err := fingerprint.Backfill(ctx, e.log, repos.NewLessonRepo(e.pg.DB(), e.log), svc, opts)
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d updated=%d embedded=%d failed=%d\n", stats.Scanned, stats.Updated, stats.Embedded, stats.Failed)
	return err
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	"github.com/yungbote/lessonbank-backend/internal/modules/vocabulary"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
)

func newSeedVocabularyCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "seed-vocabulary [file]",
		Short: "Upsert synonym and cultural hierarchy rows from a YAML seed file",
		Long: `Loads a vocabulary seed (synonyms plus the cultural heritage hierarchy)
and upserts it into Postgres. Running servers pick the change up once their
vocabulary cache expires, or immediately via POST /api/vocabulary/reload.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "configs/vocabulary.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			return runSeedVocabulary(cmd.Context(), cmd, path, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the seed and print what would change")
	return cmd
}

func runSeedVocabulary(ctx context.Context, cmd *cobra.Command, path string, dryRun bool) error {
	seed, err := vocabulary.LoadSeedFile(path)
	if err != nil {
		return fmt.Errorf("load seed %s: %w", path, err)
	}
	syns, nodes := seed.Rows(time.Now().UTC())
	snap := seed.Snapshot()
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "seed ok: %d synonym entries, %d hierarchy parents, version %s\n", len(syns), len(nodes), snap.Version())
		return nil
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	repo := repos.NewVocabularyRepo(e.pg.DB(), e.log)
	err = e.pg.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := repo.UpsertSynonyms(dbc, syns); err != nil {
			return fmt.Errorf("upsert synonyms: %w", err)
		}
		if err := repo.UpsertHierarchy(dbc, nodes); err != nil {
			return fmt.Errorf("upsert hierarchy: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.log.Info("vocabulary seeded", "path", path, "synonyms", len(syns), "hierarchy_parents", len(nodes), "version", snap.Version())
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d synonym entries and %d hierarchy parents (version %s)\n", len(syns), len(nodes), snap.Version())
	return nil
}

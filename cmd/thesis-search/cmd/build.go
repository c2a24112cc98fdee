package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/model"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
)

type buildOptions struct {
	indexes []string
}

func newBuildCmd(a *app) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build indexes and persist embedding caches",
		Long: `Build every listed index once. Embedding indexes write their document
vectors to the index folder so later searches skip vectorization.

Examples:
  thesis-search build --index w2v
  thesis-search build --index bm25 --index ft`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), a, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.indexes, "index", "i", nil, "Index types to build (default: search.indexTypes)")

	return cmd
}

func runBuild(ctx context.Context, a *app, out io.Writer, opts buildOptions) error {
	types := opts.indexes
	if len(types) == 0 {
		types = a.cfg.Search.IndexTypes
	}

	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := searcher.Deps{Config: a.cfg, Store: db, Registry: registry.New[model.Model]()}
	for _, indexType := range types {
		start := time.Now()
		engine, err := searcher.New(ctx, indexType, "", deps)
		if err != nil {
			return fmt.Errorf("building %s: %w", indexType, err)
		}
		slog.Info("index built", "index", indexType, "implementation", engine.Implementation(), "documents", engine.Len(), "duration", time.Since(start))
		fmt.Fprintf(out, "%s\t%s\t%d documents\n", indexType, engine.Implementation(), engine.Len())
		if err := engine.Close(); err != nil {
			return err
		}
	}
	return nil
}

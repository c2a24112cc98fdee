package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/model"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

type searchOptions struct {
	index          string
	implementation string
	limit          int
	style          string
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search theses relevant to the query",
		Long: `Search theses relevant to the query.

Examples:
  thesis-search search "машинное обучение"
  thesis-search search "графовые нейросети" --index w2v -n 5
  thesis-search search "поиск" --style json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), a, cmd.OutOrStdout(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.index, "index", "i", "", "Index type (default: search.defaultIndex)")
	cmd.Flags().StringVar(&opts.implementation, "implementation", "", "Override the configured implementation (matrix, dict, word2vec, fasttext, sentence)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 1, "Number of theses in the result")
	cmd.Flags().StringVarP(&opts.style, "style", "s", "text", "Output style: text, table, json")

	return cmd
}

func runSearch(ctx context.Context, a *app, out io.Writer, query string, opts searchOptions) error {
	if opts.limit < 0 {
		return apperrors.Configf("limit must not be negative, got %d", opts.limit)
	}
	switch opts.style {
	case "text", "table", "json":
	default:
		return apperrors.Configf("unknown output style %q", opts.style)
	}
	indexType := opts.index
	if indexType == "" {
		indexType = a.cfg.Search.DefaultIndex
	}

	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := registry.New[model.Model]()
	engine, err := searcher.New(ctx, indexType, opts.implementation, searcher.Deps{
		Config:   a.cfg,
		Store:    db,
		Registry: reg,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrModelNotFound) {
			return fmt.Errorf("%w\nthe model for %s is not available yet, run \"thesis-search download %s\" and try again", err, indexType, indexType)
		}
		return err
	}
	defer engine.Close()

	results, err := engine.Search(ctx, query, opts.limit)
	if err != nil {
		return err
	}
	slog.Debug("search done", "index", indexType, "returned", len(results))
	return printResults(out, results, opts.style)
}

func printResults(out io.Writer, results []searcher.Result, style string) error {
	switch style {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if results == nil {
			results = []searcher.Result{}
		}
		return enc.Encode(results)
	case "table":
		for _, r := range results {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			rows := [][2]string{
				{"название", r.Title},
				{"год", r.Year},
				{"образовательная программа", r.Program},
				{"студент", r.Student},
				{"научный руководитель", r.Supervisor},
				{"описание", r.Abstract},
				{"файл", r.FileLink},
				{"score", fmt.Sprintf("%.4f", r.Score)},
			}
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	default:
		for i, r := range results {
			fmt.Fprintf(out, "%d. %s (%s)\n", i+1, r.Title, r.Year)
			fmt.Fprintf(out, "   %s; руководитель: %s; %s\n", r.Student, r.Supervisor, r.Program)
			if r.FileLink != "" {
				fmt.Fprintf(out, "   %s\n", r.FileLink)
			}
			fmt.Fprintf(out, "   score: %.4f\n", r.Score)
		}
		return nil
	}
}

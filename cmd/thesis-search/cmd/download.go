package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

type downloadOptions struct {
	url string
}

func newDownloadCmd(a *app) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download <index>",
		Short: "Download the pretrained model of an embedding index",
		Long: `Download the pretrained model of an embedding index into the model folder.
An existing model file is kept; delete it to fetch a fresh copy.

Examples:
  thesis-search download w2v
  thesis-search download ft --url https://example.org/cc.ru.300.vec.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.Context(), a, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Override the configured model URL")

	return cmd
}

func runDownload(ctx context.Context, a *app, out io.Writer, indexType string, opts downloadOptions) error {
	ic, err := a.cfg.IndexType(indexType)
	if err != nil {
		return err
	}
	if ic.Model == nil {
		return apperrors.Configf("index %s has no model to download", indexType)
	}
	url := opts.url
	if url == "" {
		url = ic.Model.URL
	}
	if url == "" {
		return apperrors.Configf("index %s: no download url configured", indexType)
	}

	dest := a.cfg.ModelPath(*ic.Model)
	if _, err := os.Stat(dest); err == nil {
		fmt.Fprintf(out, "%s already present at %s\n", ic.Model.Name, dest)
		return nil
	}

	provider, err := searcher.ProvidersFor(a.cfg)(ic.Implementation, *ic.Model)
	if err != nil {
		return err
	}
	if err := provider.Download(ctx, url, dest); err != nil {
		return fmt.Errorf("downloading %s: %w", ic.Model.Name, err)
	}
	fmt.Fprintf(out, "%s saved to %s\n", ic.Model.Name, dest)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/preprocess"
)

func newLemmatizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lemmatize",
		Short: "Fill the lemmatized text of every thesis",
		Long: `Recompute the lemmatized text of every thesis in the store from its raw
text. Run it after importing new theses and before building sparse indexes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLemmatize(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

func runLemmatize(ctx context.Context, a *app, out io.Writer) error {
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	raw, err := db.RawTexts(ctx)
	if err != nil {
		return err
	}
	var lem preprocess.Lemmatizer
	docs := make(corpus.Corpus, len(raw))
	for i, d := range raw {
		docs[i] = corpus.Document{ID: d.ID, Text: lem.Preprocess(d.Text)}
	}
	if err := db.SetLemmatized(ctx, docs); err != nil {
		return err
	}
	slog.Info("lemmatized", "documents", len(docs))
	fmt.Fprintf(out, "lemmatized %d theses\n", len(docs))
	return nil
}

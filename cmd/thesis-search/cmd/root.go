// Package cmd provides the thesis-search CLI commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/logger"
)

// app carries state shared by subcommands once the root pre-run has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "thesis-search",
		Short: "Search student theses with sparse and embedding indexes",
		Long: `thesis-search ranks theses of the catalogue against a free-text query.

Index types: bm25 and freq (sparse, over lemmatized text), w2v and ft
(averaged word vectors) and bert (pooled sentence embeddings).

Logs go to stderr, results to stdout.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config (defaults are used when empty)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newDownloadCmd(a))
	cmd.AddCommand(newLemmatizeCmd(a))
	cmd.AddCommand(newShowConfigCmd(a))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) load() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))
	a.cfg = cfg
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", a.cfg.Store.Driver, err)
	}
	return s, nil
}

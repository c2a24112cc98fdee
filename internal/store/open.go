package store

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/postgres"
)

// Open connects the store selected by cfg.Store.Driver and applies the
// schema.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Store.Path)
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgres(ctx, client.DB)
		if err != nil {
			client.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, apperrors.Configf("unknown store driver %q", cfg.Store.Driver)
}

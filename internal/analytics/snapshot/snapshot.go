// Package snapshot persists periodic copies of the aggregated search
// analytics in PostgreSQL so a restarted analytics service resumes its
// counters.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics"
)

const schema = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// StatsSource supplies the stats to persist.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store reads and writes snapshots.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open PostgreSQL handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

// Migrate creates the snapshot table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

// Save persists stats and returns the stored snapshot.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) (analytics.Snapshot, error) {
	data, err := json.Marshal(stats)
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("encoding stats: %w", err)
	}
	snap := analytics.Snapshot{Stats: stats}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2) RETURNING id, captured_at`,
		data, time.Now().UTC(),
	).Scan(&snap.ID, &snap.CapturedAt)
	if err != nil {
		return analytics.Snapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved", "id", snap.ID, "total_searches", stats.TotalSearches)
	return snap, nil
}

// Latest returns the newest snapshot. ok is false when none exists yet.
func (s *Store) Latest(ctx context.Context) (snap analytics.Snapshot, ok bool, err error) {
	snaps, err := s.ListSnapshots(ctx, 1)
	if err != nil || len(snaps) == 0 {
		return analytics.Snapshot{}, false, err
	}
	return snaps[0], true, nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows whose
// payload no longer decodes are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, captured_at, data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []analytics.Snapshot
	for rows.Next() {
		var (
			snap analytics.Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.ID, &snap.CapturedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping undecodable snapshot", "id", snap.ID, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Prune deletes all but the newest keep snapshots.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analytics_snapshots WHERE id NOT IN (
			SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Run saves src every interval and prunes to keep snapshots until ctx is
// done, then saves once more with a short grace period.
func (s *Store) Run(ctx context.Context, src StatsSource, interval time.Duration, keep int) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.logger.Info("periodic snapshots started", "interval", interval, "keep", keep)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Save(ctx, src.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
				continue
			}
			if n, err := s.Prune(ctx, keep); err != nil {
				s.logger.Warn("snapshot pruning failed", "error", err)
			} else if n > 0 {
				s.logger.Debug("snapshots pruned", "deleted", n)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := s.Save(final, src.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			return
		}
	}
}

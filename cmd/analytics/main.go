// Command analytics aggregates search events published by the search
// service.
//
// It consumes SearchEvents from Kafka, keeps running statistics (totals,
// latency percentiles, top and zero-result queries, per-index counts) and
// serves them at GET /api/v1/analytics. With postgres configured the stats
// are snapshotted periodically, restored on start and listed at
// GET /api/v1/analytics/snapshots.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	noSnapshots := flag.Bool("no-snapshots", false, "do not persist stats to postgres")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	var background sync.WaitGroup

	var snapshots *snapshot.Store
	var pg *postgres.Client
	if !*noSnapshots {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			snapshots = snapshot.NewStore(pg.DB)
			if err := snapshots.Migrate(ctx); err != nil {
				slog.Error("failed to migrate snapshot table", "error", err)
				os.Exit(1)
			}
			if latest, ok, err := snapshots.Latest(ctx); err != nil {
				slog.Warn("failed to load latest snapshot", "error", err)
			} else if ok {
				agg.Restore(latest.Stats)
				slog.Info("stats restored from snapshot", "id", latest.ID, "captured_at", latest.CapturedAt, "total_searches", latest.Stats.TotalSearches)
			}
			background.Go(func() {
				snapshots.Run(ctx, agg, cfg.Analytics.SnapshotInterval, cfg.Analytics.SnapshotRetention)
			})
		}
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(agg))
	background.Go(func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	})
	slog.Info("consuming search events", "topic", cfg.Kafka.Topics.SearchEvents, "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker(5 * time.Second)
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pg == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "snapshots disabled"}
		}
		return health.Ping(pg.Ping, health.StatusDegraded)(ctx)
	})

	var lister analytics.SnapshotLister
	if snapshots != nil {
		lister = snapshots
	}
	h := analytics.NewHandler(agg, lister)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	background.Wait()
	slog.Info("analytics service stopped")
}

// Command searcher serves thesis search over HTTP.
//
// GET /api/v1/search?q=...&index=bm25&limit=10 returns ranked records;
// engines are built lazily per index type and the enabled types are warmed
// at startup. Results are cached in Redis and every search is published to
// Kafka for the analytics service when those are enabled.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_types", cfg.Search.IndexTypes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, nil); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	manager := searcher.NewManager(searcher.Deps{Config: cfg, Store: db}, m)
	defer manager.Close()

	go func() {
		start := time.Now()
		if err := manager.Warm(ctx, cfg.Search.IndexTypes...); err != nil {
			slog.Warn("index warm-up incomplete, failed types are built on first use", "error", err)
			return
		}
		slog.Info("all indexes warmed", "duration", time.Since(start))
	}()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000, 100, 5*time.Second, m)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker(5 * time.Second)
	checker.Register("store", health.Ping(db.DB().PingContext, health.StatusDown))
	checker.Register("default_index", func(ctx context.Context) health.ComponentHealth {
		if manager.Loaded(cfg.Search.DefaultIndex) {
			return health.ComponentHealth{Status: health.StatusUp, Message: cfg.Search.DefaultIndex}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: cfg.Search.DefaultIndex + " not built yet"}
	})
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
	}

	h := handler.New(manager, queryCache, tracker, m, handler.Options{
		DefaultIndex:   cfg.Search.DefaultIndex,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxResults:     cfg.Search.MaxResults,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/indexes", h.Indexes)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Sweep(ctx, 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/resilience"
)

// Engines runs searches against lazily built per-index engines.
type Engines interface {
	Search(ctx context.Context, indexType, query string, n int) ([]searcher.Result, error)
	IndexTypes() []string
	Loaded(indexType string) bool
}

// Tracker receives one event per served search.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

// Options are the request limits of the search endpoint.
type Options struct {
	DefaultIndex   string
	DefaultLimit   int
	MaxResults     int
	RequestTimeout time.Duration
}

type Handler struct {
	engines Engines
	cache   *cache.QueryCache
	tracker Tracker
	metrics *metrics.Metrics
	opts    Options
	logger  *slog.Logger
}

// New creates the handler. queryCache, tracker and m may be nil.
func New(engines Engines, queryCache *cache.QueryCache, tracker Tracker, m *metrics.Metrics, opts Options) *Handler {
	return &Handler{
		engines: engines,
		cache:   queryCache,
		tracker: tracker,
		metrics: m,
		opts:    opts,
		logger:  slog.Default().With("component", "search-handler"),
	}
}

// Search serves GET /api/v1/search?q=&index=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	indexType := r.URL.Query().Get("index")
	if indexType == "" {
		indexType = h.opts.DefaultIndex
	}

	limit := h.opts.DefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, h.opts.MaxResults)
	}

	compute := func() (*cache.Response, error) {
		var results []searcher.Result
		err := resilience.WithTimeout(ctx, h.opts.RequestTimeout, "search", func(ctx context.Context) error {
			var err error
			results, err = h.engines.Search(ctx, indexType, query, limit)
			return err
		})
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []searcher.Result{}
		}
		return &cache.Response{Index: indexType, Query: query, Results: results}, nil
	}

	var resp *cache.Response
	var err error
	cacheHit := false
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, indexType, query, limit, compute)
	} else {
		resp, err = compute()
	}

	latency := time.Since(start)
	event := analytics.SearchEvent{
		Type:      analytics.EventSearch,
		Index:     indexType,
		Query:     query,
		Limit:     limit,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		result := "error"
		event.Type = analytics.EventError
		if errors.Is(err, apperrors.ErrEmptyQuery) {
			result = "empty_query"
			event.Type = analytics.EventEmptyQuery
		}
		event.Error = err.Error()
		h.observe(indexType, result, cacheHit, latency, 0)
		h.track(event)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "index", indexType, "query", query, "error", err)
		} else {
			log.Info("search rejected", "index", indexType, "query", query, "error", err)
		}
		h.writeError(w, status, publicMessage(err, status))
		return
	}

	event.Returned = len(resp.Results)
	if len(resp.Results) > 0 {
		event.TopScore = resp.Results[0].Score
	}
	if topScoreIsZero(resp.Results) {
		event.Type = analytics.EventZeroResult
	}
	h.observe(indexType, "ok", cacheHit, latency, len(resp.Results))
	h.track(event)

	log.Info("search completed",
		"index", indexType,
		"query", query,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, resp)
}

// Indexes serves GET /api/v1/indexes.
func (h *Handler) Indexes(w http.ResponseWriter, r *http.Request) {
	type indexInfo struct {
		Name    string `json:"name"`
		Loaded  bool   `json:"loaded"`
		Default bool   `json:"default"`
	}
	types := h.engines.IndexTypes()
	out := make([]indexInfo, 0, len(types))
	for _, t := range types {
		out = append(out, indexInfo{Name: t, Loaded: h.engines.Loaded(t), Default: t == h.opts.DefaultIndex})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"indexes": out})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// topScoreIsZero reports a search where nothing matched: every index scores
// all documents, so an empty match shows up as a zero best score.
func topScoreIsZero(results []searcher.Result) bool {
	return len(results) == 0 || results[0].Score == 0
}

func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		return "search failed"
	}
	return err.Error()
}

func (h *Handler) observe(indexType, result string, cacheHit bool, latency time.Duration, returned int) {
	if h.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(indexType, result).Inc()
	h.metrics.SearchLatency.WithLabelValues(indexType, cacheStatus).Observe(latency.Seconds())
	if result == "ok" {
		h.metrics.SearchResultsCount.WithLabelValues(indexType).Observe(float64(returned))
	}
}

func (h *Handler) track(event analytics.SearchEvent) {
	if h.tracker != nil {
		h.tracker.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

package searcher

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index/dense"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/model"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/registry"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/metrics"
)

// Manager owns one lazily built Engine per enabled index type. Engines of
// one process share a model registry, so two index types backed by the same
// model hold a single copy of it.
type Manager struct {
	deps    Deps
	enabled []string
	metrics *metrics.Metrics

	// ctx bounds every build; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	engines map[string]*Engine
	closed  bool
	group   singleflight.Group
	logger  *slog.Logger
}

// ErrClosed is returned by Engine after Close.
var ErrClosed = errors.New("engine manager closed")

// NewManager creates a Manager for the index types enabled in
// deps.Config.Search.IndexTypes. m may be nil.
func NewManager(deps Deps, m *metrics.Metrics) *Manager {
	if deps.Registry == nil {
		var opts []registry.Option
		if m != nil {
			opts = append(opts, registry.WithHooks(
				func(string) { m.LoadedModels.Inc() },
				func(string) { m.LoadedModels.Dec() },
			))
		}
		deps.Registry = registry.New[model.Model](opts...)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		deps:    deps,
		enabled: slices.Clone(deps.Config.Search.IndexTypes),
		metrics: m,
		engines: make(map[string]*Engine),
		logger:  slog.Default().With("component", "engine-manager"),
	}
}

// IndexTypes lists the enabled index types in configured order.
func (m *Manager) IndexTypes() []string { return slices.Clone(m.enabled) }

// Registry returns the model registry shared by the engines.
func (m *Manager) Registry() *dense.Registry { return m.deps.Registry }

// Loaded reports whether the engine of indexType has been built.
func (m *Manager) Loaded(indexType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.engines[indexType]
	return ok
}

// Engine returns the engine for indexType, building it on first use.
// Concurrent first calls share one build, which runs independently of any
// caller's ctx: a caller whose ctx ends stops waiting but the build goes on
// for the others. Failed builds are retried by the next call.
func (m *Manager) Engine(ctx context.Context, indexType string) (*Engine, error) {
	if !slices.Contains(m.enabled, indexType) {
		return nil, apperrors.Configf("index type %q is not enabled", indexType)
	}
	m.mu.RLock()
	e, ok := m.engines[indexType]
	closed := m.closed
	m.mu.RUnlock()
	switch {
	case closed:
		return nil, ErrClosed
	case ok:
		return e, nil
	}

	ch := m.group.DoChan(indexType, func() (any, error) {
		m.mu.RLock()
		e, ok := m.engines[indexType]
		m.mu.RUnlock()
		if ok {
			return e, nil
		}
		return m.build(indexType)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Engine), nil
	}
}

func (m *Manager) build(indexType string) (*Engine, error) {
	start := time.Now()
	m.logger.Info("building engine", "index", indexType)
	e, err := New(m.ctx, indexType, "", m.deps)
	if m.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.IndexBuildsTotal.WithLabelValues(indexType, status).Inc()
		m.metrics.IndexBuildDuration.WithLabelValues(indexType).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		m.logger.Error("engine build failed", "index", indexType, "error", err)
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.IndexDocuments.WithLabelValues(indexType).Set(float64(e.Len()))
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.logger.Info("discarding engine built after close", "index", indexType)
		return nil, errors.Join(ErrClosed, e.Close())
	}
	m.engines[indexType] = e
	m.mu.Unlock()
	m.logger.Info("engine ready", "index", indexType, "docs", e.Len(), "duration", time.Since(start))
	return e, nil
}

// Search runs query against the engine of indexType, building it if needed.
func (m *Manager) Search(ctx context.Context, indexType, query string, n int) ([]Result, error) {
	e, err := m.Engine(ctx, indexType)
	if err != nil {
		return nil, err
	}
	return e.Search(ctx, query, n)
}

// Warm builds the engines of the given index types concurrently and returns
// the first error. A failing type does not cancel the others.
func (m *Manager) Warm(ctx context.Context, indexTypes ...string) error {
	var g errgroup.Group
	for _, t := range indexTypes {
		g.Go(func() error {
			_, err := m.Engine(ctx, t)
			return err
		})
	}
	return g.Wait()
}

// Close closes every built engine, releasing their models, and cancels
// builds in flight. An engine whose build finishes after Close is closed
// by the build itself.
func (m *Manager) Close() error {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*Engine)
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

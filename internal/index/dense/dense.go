// Package dense ranks documents by the similarity of model-produced vectors.
// Document vectors are computed once per model, in parallel, and cached on
// disk next to other indexes; later constructions load the cache instead of
// vectorizing the corpus again.
package dense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index/matrixfile"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/model"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/registry"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

const defaultQueryCacheSize = 1024

// Registry is the model registry shared by embedding indexes.
type Registry = registry.Registry[model.Model]

// Config parameterizes an EmbeddingIndex.
type Config struct {
	// Model names the model in the registry and in the cache file name.
	Model string
	// Path is handed to Provider.Load.
	Path string
	// Metric is "cosine" or "dot".
	Metric      string
	IndexFolder string
	// Workers bounds concurrent document vectorization.
	Workers        int
	QueryCacheSize int
}

// EmbeddingIndex is an index.Strategy over dense document vectors.
type EmbeddingIndex struct {
	name       string
	ids        []int64
	rows       [][]float64
	dim        int
	model      model.Model
	similarity similarity.Func
	registry   *Registry
	queries    *lru.Cache[string, []float64]
	logger     *slog.Logger
	closeOnce  sync.Once
}

// New acquires the model from reg and loads or computes the document matrix
// for c. A cache file whose row count differs from len(c) fails with
// ErrDimensionMismatch.
func New(ctx context.Context, c corpus.Corpus, provider model.Provider, reg *Registry, cfg Config) (*EmbeddingIndex, error) {
	sim, err := similarity.Lookup(cfg.Metric)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, apperrors.Configf("embedding index needs a model name")
	}

	m, err := reg.Acquire(cfg.Model, func() (model.Model, error) {
		return provider.Load(cfg.Path)
	})
	if err != nil {
		return nil, err
	}

	idx := &EmbeddingIndex{
		name:       cfg.Model,
		ids:        c.IDs(),
		dim:        m.Dimension(),
		model:      m,
		similarity: sim,
		registry:   reg,
		logger:     slog.Default().With("component", "embedding-index", "model", cfg.Model),
	}
	if err := idx.loadOrBuild(ctx, c, cfg); err != nil {
		return nil, errors.Join(err, reg.Release(cfg.Model))
	}

	size := cfg.QueryCacheSize
	if size <= 0 {
		size = defaultQueryCacheSize
	}
	idx.queries, _ = lru.New[string, []float64](size)
	return idx, nil
}

func (e *EmbeddingIndex) loadOrBuild(ctx context.Context, c corpus.Corpus, cfg Config) error {
	path := matrixfile.Path(cfg.IndexFolder, cfg.Model)
	exists, err := matrixfile.Exists(path)
	if err != nil {
		return err
	}

	if exists {
		rows, err := matrixfile.Load(path)
		if err != nil {
			return err
		}
		if len(rows) != len(c) {
			return apperrors.DimensionMismatchf("index file %s has %d rows, corpus has %d documents", path, len(rows), len(c))
		}
		if len(rows) > 0 && len(rows[0]) != e.dim {
			return apperrors.DimensionMismatchf("index file %s has %d columns, model %s has %d dimensions", path, len(rows[0]), cfg.Model, e.dim)
		}
		e.rows = rows
		e.logger.Info("loaded index from cache", "path", path, "docs", len(rows))
		return nil
	}

	start := time.Now()
	e.logger.Info("computing index", "docs", len(c), "workers", cfg.Workers)
	rows, err := vectorizeAll(ctx, c, e.model, cfg.Workers)
	if err != nil {
		return err
	}
	e.rows = rows
	if err := matrixfile.Save(path, rows); err != nil {
		return err
	}
	e.logger.Info("index computed", "path", path, "docs", len(rows), "duration", time.Since(start))
	return nil
}

// vectorizeAll computes one row per document on a bounded worker pool. Each
// worker writes only its own row.
func vectorizeAll(ctx context.Context, c corpus.Corpus, m model.Model, workers int) ([][]float64, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make([][]float64, len(c))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	dim := m.Dimension()
	for i, doc := range c {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			v, err := m.Vectorize(ctx, doc.Text)
			if err != nil {
				fail(fmt.Errorf("vectorizing document %d: %w", doc.ID, err))
				return
			}
			if len(v) != dim {
				fail(apperrors.DimensionMismatchf("document %d vector has %d dimensions, expected %d", doc.ID, len(v), dim))
				return
			}
			rows[i] = v
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submitting document %d: %w", doc.ID, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return rows, nil
}

// Rank vectorizes query with the index's model and scores every document
// with the configured metric.
func (e *EmbeddingIndex) Rank(ctx context.Context, query string, topN int) ([]index.ScoredDoc, error) {
	qv, err := e.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := similarity.CheckDimension(e.dim, qv); err != nil {
		return nil, err
	}
	return index.TopN(e.ids, e.similarity(e.rows, qv), topN), nil
}

func (e *EmbeddingIndex) queryVector(ctx context.Context, query string) ([]float64, error) {
	if v, ok := e.queries.Get(query); ok {
		return v, nil
	}
	v, err := e.model.Vectorize(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorizing query: %w", err)
	}
	e.queries.Add(query, v)
	return v, nil
}

// Model returns the name the index was built with.
func (e *EmbeddingIndex) Model() string { return e.name }

// Dimension is the width of document vectors.
func (e *EmbeddingIndex) Dimension() int { return e.dim }

// Len implements index.Strategy.
func (e *EmbeddingIndex) Len() int { return len(e.ids) }

// Close releases the index's hold on its model. It is safe to call more
// than once.
func (e *EmbeddingIndex) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.registry.Release(e.name)
	})
	return err
}

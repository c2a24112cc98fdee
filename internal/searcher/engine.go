// Package searcher binds an index type to its preprocessing, its ranking
// strategy and the store that turns ranked ids into records.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index/dense"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index/sparse"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/model"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Implementation names accepted by New.
const (
	Matrix   = "matrix"
	Dict     = "dict"
	Word2Vec = "word2vec"
	FastText = "fasttext"
	Sentence = "sentence"
)

// ProviderFunc returns the model provider for an embedding implementation.
type ProviderFunc func(implementation string, mc config.ModelConfig) (model.Provider, error)

// Deps are the collaborators shared by every engine of a process.
type Deps struct {
	Config   *config.Config
	Store    corpus.DataStore
	Registry *dense.Registry
	// Providers defaults to ProvidersFor(Config).
	Providers ProviderFunc
}

// Result is one ranked record.
type Result struct {
	corpus.Record
	Score float64 `json:"score"`
}

// Engine serves queries for one index type.
type Engine struct {
	indexType      string
	implementation string
	preprocessor   preprocess.Preprocessor
	strategy       index.Strategy
	store          corpus.DataStore
	logger         *slog.Logger
}

// New builds the engine for indexType. An empty implementation selects the
// configured one. Unknown index types or implementations fail with
// ErrConfig; embedding engines fail with ErrModelNotFound when the model
// file is absent.
func New(ctx context.Context, indexType, implementation string, deps Deps) (*Engine, error) {
	ic, err := deps.Config.IndexType(indexType)
	if err != nil {
		return nil, err
	}
	if implementation == "" {
		implementation = ic.Implementation
	}
	pre, err := preprocess.Lookup(ic.Preprocessor)
	if err != nil {
		return nil, err
	}
	variant, ok := corpus.ParseVariant(ic.Corpus)
	if !ok {
		return nil, apperrors.Configf("index %s: unknown corpus variant %q", indexType, ic.Corpus)
	}

	var build func(corpus.Corpus) (index.Strategy, error)
	switch implementation {
	case Matrix, Dict:
		scorer, err := sparseScorer(indexType, ic)
		if err != nil {
			return nil, err
		}
		build = func(c corpus.Corpus) (index.Strategy, error) {
			if implementation == Matrix {
				return sparse.NewMatrix(c, scorer)
			}
			return sparse.NewDict(c, scorer)
		}
	case Word2Vec, FastText, Sentence:
		if ic.Model == nil {
			return nil, apperrors.Configf("index %s: implementation %s needs a model", indexType, implementation)
		}
		providers := deps.Providers
		if providers == nil {
			providers = ProvidersFor(deps.Config)
		}
		provider, err := providers(implementation, *ic.Model)
		if err != nil {
			return nil, err
		}
		registry := deps.Registry
		if registry == nil {
			return nil, apperrors.Configf("index %s: embedding engines need a model registry", indexType)
		}
		cfg := dense.Config{
			Model:          ic.Model.Name,
			Path:           modelPath(deps.Config, implementation, *ic.Model),
			Metric:         ic.Model.Metric,
			IndexFolder:    deps.Config.Index.IndexFolder,
			Workers:        deps.Config.Index.BuildWorkers,
			QueryCacheSize: deps.Config.Index.QueryCacheSize,
		}
		build = func(c corpus.Corpus) (index.Strategy, error) {
			return dense.New(ctx, c, provider, registry, cfg)
		}
	default:
		return nil, apperrors.Configf("index %s: unknown implementation %q", indexType, implementation)
	}

	docs, err := deps.Store.Corpus(ctx, variant)
	if err != nil {
		return nil, fmt.Errorf("loading %s corpus: %w", variant, err)
	}
	strategy, err := build(docs)
	if err != nil {
		return nil, err
	}
	return &Engine{
		indexType:      indexType,
		implementation: implementation,
		preprocessor:   pre,
		strategy:       strategy,
		store:          deps.Store,
		logger:         slog.Default().With("component", "search-engine", "index", indexType, "implementation", implementation),
	}, nil
}

func sparseScorer(indexType string, ic config.IndexTypeConfig) (sparse.Scorer, error) {
	switch indexType {
	case "bm25":
		length, err := sparse.ParseLengthMeasure(ic.LengthMeasure)
		if err != nil {
			return nil, err
		}
		return sparse.BM25{K: ic.K, B: ic.B, Length: length}, nil
	case "freq":
		return sparse.Frequency{}, nil
	}
	return nil, apperrors.Configf("index %s has no sparse scorer", indexType)
}

// modelPath resolves the Load argument. Sentence models are addressed by
// their remote id, file models relative to the model folder.
func modelPath(cfg *config.Config, implementation string, mc config.ModelConfig) string {
	if implementation == Sentence {
		if mc.Path != "" {
			return mc.Path
		}
		return mc.Name
	}
	return cfg.ModelPath(mc)
}

// ProvidersFor returns the default providers wired from cfg.
func ProvidersFor(cfg *config.Config) ProviderFunc {
	downloader := model.NewDownloader(nil)
	return func(implementation string, mc config.ModelConfig) (model.Provider, error) {
		switch implementation {
		case Word2Vec:
			return &model.Word2Vec{Name: mc.Name, Downloader: downloader}, nil
		case FastText:
			return &model.FastText{Name: mc.Name, Downloader: downloader}, nil
		case Sentence:
			return &model.Sentence{
				Name:     mc.Name,
				Endpoint: cfg.Embedding.Endpoint,
				APIKey:   cfg.Embedding.APIKey,
				Timeout:  cfg.Embedding.Timeout,
			}, nil
		}
		return nil, apperrors.Configf("no model provider for implementation %q", implementation)
	}
}

// Search preprocesses query, ranks the corpus and returns at most n records
// best first. A query with no content words fails with ErrEmptyQuery; the
// engine stays usable.
func (e *Engine) Search(ctx context.Context, query string, n int) ([]Result, error) {
	normalized := strings.TrimSpace(e.preprocessor.Preprocess(query))
	if normalized == "" {
		return nil, apperrors.New(apperrors.ErrEmptyQuery, http.StatusBadRequest, "nothing left to search after preprocessing")
	}
	ranked, err := e.strategy.Rank(ctx, normalized, n)
	if err != nil {
		return nil, fmt.Errorf("ranking %q: %w", normalized, err)
	}
	results := make([]Result, 0, len(ranked))
	for _, doc := range ranked {
		rec, err := e.store.Record(ctx, doc.DocID)
		if err != nil {
			return nil, fmt.Errorf("loading record %d: %w", doc.DocID, err)
		}
		results = append(results, Result{Record: rec, Score: doc.Score})
	}
	e.logger.Debug("search done", "query", normalized, "returned", len(results))
	return results, nil
}

// IndexType returns the index type the engine serves.
func (e *Engine) IndexType() string { return e.indexType }

// Implementation returns the strategy implementation name.
func (e *Engine) Implementation() string { return e.implementation }

// Len is the number of indexed documents.
func (e *Engine) Len() int { return e.strategy.Len() }

// Close releases the strategy's resources.
func (e *Engine) Close() error { return e.strategy.Close() }

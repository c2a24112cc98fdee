// Package model loads pretrained embedding models and turns text into fixed
// size vectors. Each Provider owns its pooling strategy (mean of word vectors,
// mean of sentence embeddings); index code only sees Model.Vectorize.
package model

import (
	"context"
	"errors"
	"io/fs"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Model is a loaded pretrained model. Vectorize must be safe for concurrent
// use.
type Model interface {
	Name() string
	Dimension() int
	Vectorize(ctx context.Context, text string) ([]float64, error)
	Close() error
}

// Provider loads models of one family and fetches their files.
type Provider interface {
	// Load opens the model at path. It fails with ErrModelNotFound when the
	// backing file is absent.
	Load(path string) (Model, error)
	// Download fetches the model published at url into dest.
	Download(ctx context.Context, url, dest string) error
}

func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.ModelNotFoundf("no model file at %s", path)
		}
		return err
	}
	return nil
}

func zeros(n int) []float64 {
	return make([]float64, n)
}

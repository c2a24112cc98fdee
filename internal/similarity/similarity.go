// Package similarity scores a matrix of document vectors against a query
// vector.
package similarity

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Func maps an n×dim matrix and a dim-length query onto n scores.
type Func func(docs [][]float64, query []float64) []float64

// Metric names accepted by Lookup.
const (
	Cosine = "cosine"
	Dot    = "dot"
)

// Lookup resolves a metric name. "dot-prod" is accepted as an alias of dot.
func Lookup(name string) (Func, error) {
	switch name {
	case Cosine:
		return CosineScores, nil
	case Dot, "dot-prod":
		return DotScores, nil
	default:
		return nil, apperrors.Configf("unknown similarity metric %q", name)
	}
}

// DotScores returns the inner product of every row with query.
func DotScores(docs [][]float64, query []float64) []float64 {
	scores := make([]float64, len(docs))
	for i, row := range docs {
		scores[i] = dot(row, query)
	}
	return scores
}

// CosineScores returns the cosine of the angle between every row and query.
// A zero-norm row or query scores 0.
func CosineScores(docs [][]float64, query []float64) []float64 {
	scores := make([]float64, len(docs))
	qn := Norm(query)
	if qn == 0 {
		return scores
	}
	for i, row := range docs {
		rn := Norm(row)
		if rn == 0 {
			continue
		}
		scores[i] = dot(row, query) / (rn * qn)
	}
	return scores
}

// Norm returns the Euclidean length of v.
func Norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

// CheckDimension reports whether query can be scored against rows of width
// dim.
func CheckDimension(dim int, query []float64) error {
	if dim != len(query) {
		return apperrors.DimensionMismatchf("query vector has %d dimensions, index has %d", len(query), dim)
	}
	return nil
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("similarity: length mismatch %d != %d", len(a), len(b)))
	}
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

package similarity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

func TestCosineScores(t *testing.T) {
	docs := [][]float64{{1, 0}, {0, 1}, {1, 1}}
	scores := CosineScores(docs, []float64{1, 0})
	assert.InDelta(t, 1.0, scores[0], 1e-12)
	assert.InDelta(t, 0.0, scores[1], 1e-12)
	assert.InDelta(t, 0.7071067811865475, scores[2], 1e-12)
}

func TestCosineInvariantToPositiveScaling(t *testing.T) {
	docs := [][]float64{{0.3, -1.2, 4}, {2, 2, 2}, {-1, 0.5, 0}}
	query := []float64{0.7, 0.1, -0.4}

	base := CosineScores(docs, query)
	for _, c := range []float64{0.001, 0.5, 3, 1e6} {
		scaled := make([]float64, len(query))
		for i, v := range query {
			scaled[i] = v * c
		}
		got := CosineScores(docs, scaled)
		for i := range base {
			assert.InDelta(t, base[i], got[i], 1e-12, "scale %v row %d", c, i)
		}
	}
}

func TestCosineZeroNormScoresZero(t *testing.T) {
	docs := [][]float64{{0, 0}, {1, 2}}
	assert.Equal(t, []float64{0, 0}, CosineScores(docs, []float64{0, 0}))

	scores := CosineScores(docs, []float64{1, 0})
	assert.Equal(t, 0.0, scores[0])
	assert.Greater(t, scores[1], 0.0)
}

func TestDotScores(t *testing.T) {
	docs := [][]float64{{1, 2}, {3, 4}}
	assert.Equal(t, []float64{5, 11}, DotScores(docs, []float64{1, 2}))
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"cosine", "dot", "dot-prod"} {
		f, err := Lookup(name)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}
	_, err := Lookup("manhattan")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, CheckDimension(2, []float64{1, 2}))
	assert.True(t, errors.Is(CheckDimension(3, []float64{1}), apperrors.ErrDimensionMismatch))
}

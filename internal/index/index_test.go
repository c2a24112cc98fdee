package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopNStableTieBreak(t *testing.T) {
	ids := []int64{10, 20, 30, 40, 50}
	scores := []float64{0.5, 1.0, 0.5, 1.0, 0}

	got := TopN(ids, scores, 10)
	assert.Equal(t, []int64{20, 40, 10, 30, 50}, DocIDs(got))
	assert.Equal(t, 1.0, got[0].Score)
}

func TestTopNTruncates(t *testing.T) {
	ids := []int64{1, 2, 3}
	scores := []float64{3, 2, 1}

	assert.Equal(t, []int64{1, 2}, DocIDs(TopN(ids, scores, 2)))
	assert.Empty(t, TopN(ids, scores, 0))
	assert.Empty(t, TopN(ids, scores, -4))
	assert.Empty(t, TopN(nil, nil, 5))
}

func TestTopNDoesNotMutateInputs(t *testing.T) {
	ids := []int64{1, 2}
	scores := []float64{0, 1}
	TopN(ids, scores, 2)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, []float64{0, 1}, scores)
}

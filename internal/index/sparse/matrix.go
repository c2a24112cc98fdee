package sparse

import (
	"context"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index"
)

// MatrixIndex stores term weights as a compressed sparse row matrix with one
// row per document and one column per vocabulary term.
type MatrixIndex struct {
	ids    []int64
	vocab  *Vocabulary
	rowPtr []int
	cols   []int
	values []float64
}

// NewMatrix builds a MatrixIndex over c weighted by scorer.
func NewMatrix(c corpus.Corpus, scorer Scorer) (*MatrixIndex, error) {
	s, err := collect(c)
	if err != nil {
		return nil, err
	}

	rows := make([][]cell, len(c))
	s.weigh(scorer, func(doc, col int, w float64) {
		if w != 0 {
			rows[doc] = append(rows[doc], cell{col: col, value: w})
		}
	})

	m := &MatrixIndex{
		ids:    s.ids,
		vocab:  s.vocab,
		rowPtr: make([]int, len(c)+1),
	}
	for i, row := range rows {
		sort.Slice(row, func(a, b int) bool { return row[a].col < row[b].col })
		for _, cl := range row {
			m.cols = append(m.cols, cl.col)
			m.values = append(m.values, cl.value)
		}
		m.rowPtr[i+1] = len(m.cols)
	}
	return m, nil
}

type cell struct {
	col   int
	value float64
}

// Rank scores every document as the inner product of its row with the
// binary query indicator vector.
func (m *MatrixIndex) Rank(_ context.Context, query string, topN int) ([]index.ScoredDoc, error) {
	indicator := make([]bool, m.vocab.Len())
	for _, col := range m.vocab.queryColumns(query) {
		indicator[col] = true
	}

	scores := make([]float64, len(m.ids))
	for i := range m.ids {
		var sum float64
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			if indicator[m.cols[p]] {
				sum += m.values[p]
			}
		}
		scores[i] = sum
	}
	return index.TopN(m.ids, scores, topN), nil
}

// Weight returns the stored weight of term in the document at position doc.
func (m *MatrixIndex) Weight(doc int, term string) float64 {
	col, ok := m.vocab.Column(term)
	if !ok {
		return 0
	}
	lo, hi := m.rowPtr[doc], m.rowPtr[doc+1]
	p := lo + sort.SearchInts(m.cols[lo:hi], col)
	if p < hi && m.cols[p] == col {
		return m.values[p]
	}
	return 0
}

// Vocabulary returns the term-to-column mapping.
func (m *MatrixIndex) Vocabulary() *Vocabulary { return m.vocab }

// Len implements index.Strategy.
func (m *MatrixIndex) Len() int { return len(m.ids) }

// Close implements index.Strategy.
func (m *MatrixIndex) Close() error { return nil }

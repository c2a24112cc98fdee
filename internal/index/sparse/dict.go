package sparse

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/index"
)

// DictIndex stores the same weights as MatrixIndex in posting-list form:
// term -> {doc id: weight}.
type DictIndex struct {
	ids      []int64
	position map[int64]int
	vocab    *Vocabulary
	postings map[string]map[int64]float64
}

// NewDict builds a DictIndex over c weighted by scorer.
func NewDict(c corpus.Corpus, scorer Scorer) (*DictIndex, error) {
	s, err := collect(c)
	if err != nil {
		return nil, err
	}
	d := &DictIndex{
		ids:      s.ids,
		position: make(map[int64]int, len(s.ids)),
		vocab:    s.vocab,
		postings: make(map[string]map[int64]float64, s.vocab.Len()),
	}
	for i, id := range s.ids {
		d.position[id] = i
	}
	s.weigh(scorer, func(doc, col int, w float64) {
		if w == 0 {
			return
		}
		term := s.vocab.Term(col)
		list, ok := d.postings[term]
		if !ok {
			list = make(map[int64]float64)
			d.postings[term] = list
		}
		list[s.ids[doc]] = w
	})
	return d, nil
}

// Rank sums, per document, the posting weights of every known query term.
// Terms are visited in column order so sums match MatrixIndex bit for bit.
func (d *DictIndex) Rank(_ context.Context, query string, topN int) ([]index.ScoredDoc, error) {
	scores := make([]float64, len(d.ids))
	for _, col := range d.vocab.queryColumns(query) {
		for id, w := range d.postings[d.vocab.Term(col)] {
			scores[d.position[id]] += w
		}
	}
	return index.TopN(d.ids, scores, topN), nil
}

// Postings returns the posting list of term.
func (d *DictIndex) Postings(term string) map[int64]float64 {
	return d.postings[term]
}

// Len implements index.Strategy.
func (d *DictIndex) Len() int { return len(d.ids) }

// Close implements index.Strategy.
func (d *DictIndex) Close() error { return nil }

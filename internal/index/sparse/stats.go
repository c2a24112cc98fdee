package sparse

import (
	"fmt"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// termCount is the number of occurrences of the term at Column in a document.
type termCount struct {
	Column int
	Count  int
}

// stats is the single pass over the corpus both sparse representations are
// derived from.
type stats struct {
	ids     []int64
	vocab   *Vocabulary
	counts  [][]termCount // per document, in first-occurrence order
	lengths []int
	docFreq []int
	corpus  CorpusStats
}

func collect(c corpus.Corpus) (*stats, error) {
	s := &stats{
		ids:     make([]int64, len(c)),
		vocab:   newVocabulary(),
		counts:  make([][]termCount, len(c)),
		lengths: make([]int, len(c)),
	}
	seenIDs := make(map[int64]struct{}, len(c))
	var total int
	for i, doc := range c {
		if _, dup := seenIDs[doc.ID]; dup {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "duplicate document id %d", doc.ID)
		}
		seenIDs[doc.ID] = struct{}{}
		s.ids[i] = doc.ID

		tokens := tokenize(doc.Text)
		s.lengths[i] = len(tokens)
		total += len(tokens)
		if len(tokens) > 0 {
			s.corpus.NonEmptyDocs++
		}

		pos := make(map[int]int)
		var row []termCount
		for _, tok := range tokens {
			col := s.vocab.add(tok)
			if p, ok := pos[col]; ok {
				row[p].Count++
				continue
			}
			pos[col] = len(row)
			row = append(row, termCount{Column: col, Count: 1})
			if col == len(s.docFreq) {
				s.docFreq = append(s.docFreq, 0)
			}
			s.docFreq[col]++
		}
		s.counts[i] = row
	}
	s.corpus.Docs = len(c)
	if len(c) > 0 {
		s.corpus.AvgDocLen = float64(total) / float64(len(c))
	}
	return s, nil
}

// weigh applies scorer to every (document, term) pair, invoking emit with
// the document position, column and weight.
func (s *stats) weigh(scorer Scorer, emit func(doc, col int, w float64)) {
	for i, row := range s.counts {
		for _, tc := range row {
			emit(i, tc.Column, scorer.Weight(tc.Count, s.lengths[i], s.docFreq[tc.Column], s.corpus))
		}
	}
}

func (s *stats) String() string {
	return fmt.Sprintf("docs=%d terms=%d avgdl=%.2f", s.corpus.Docs, s.vocab.Len(), s.corpus.AvgDocLen)
}

// Package index defines the contract shared by every retrieval strategy and
// the exact ranking discipline they all follow: full scoring, descending sort
// with ties kept in corpus order, truncation to the requested size.
package index

import (
	"context"
	"sort"
)

// ScoredDoc is a ranked document id with its score.
type ScoredDoc struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// Strategy is a build-once representation of a corpus that ranks documents
// against a preprocessed query. Implementations are safe for concurrent Rank
// calls once constructed.
type Strategy interface {
	// Rank returns at most topN documents, best match first.
	Rank(ctx context.Context, query string, topN int) ([]ScoredDoc, error)
	// Len is the number of indexed documents.
	Len() int
	// Close releases shared resources held by the strategy.
	Close() error
}

// TopN orders ids by descending score, keeping corpus order among equal
// scores, and truncates the result to n entries. ids and scores are parallel
// slices in corpus order.
func TopN(ids []int64, scores []float64, n int) []ScoredDoc {
	if n <= 0 || len(ids) == 0 {
		return []ScoredDoc{}
	}
	result := make([]ScoredDoc, len(ids))
	for i, id := range ids {
		result[i] = ScoredDoc{DocID: id, Score: scores[i]}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// DocIDs projects ranked results onto their ids.
func DocIDs(docs []ScoredDoc) []int64 {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	return ids
}

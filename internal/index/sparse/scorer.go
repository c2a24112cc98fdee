package sparse

import (
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// CorpusStats are the corpus-wide quantities a Scorer may depend on.
type CorpusStats struct {
	Docs         int
	NonEmptyDocs int
	AvgDocLen    float64
}

// Scorer computes the weight of one term in one document.
type Scorer interface {
	Weight(count, docLen, docFreq int, stats CorpusStats) float64
}

// LengthMeasure selects what "document length" means in BM25 length
// normalization.
type LengthMeasure string

const (
	// NormalizedLength measures a document by the sum of its term
	// frequencies: 1 for any non-empty document, 0 for an empty one. Length
	// normalization then only separates empty from non-empty documents.
	NormalizedLength LengthMeasure = "normalized"
	// TokenLength measures a document by its token count.
	TokenLength LengthMeasure = "tokens"
)

// ParseLengthMeasure maps a configuration value onto a LengthMeasure. The
// empty string selects NormalizedLength.
func ParseLengthMeasure(s string) (LengthMeasure, error) {
	switch LengthMeasure(s) {
	case "", NormalizedLength:
		return NormalizedLength, nil
	case TokenLength:
		return TokenLength, nil
	}
	return "", apperrors.Configf("unknown bm25 length measure %q", s)
}

// BM25 weighs terms with saturation K and length normalization B. Its idf is
// ln(N) - ln(df) without smoothing, so a term present in every document
// weighs zero.
type BM25 struct {
	K      float64
	B      float64
	Length LengthMeasure
}

// Weight implements Scorer.
func (s BM25) Weight(count, docLen, docFreq int, stats CorpusStats) float64 {
	if docLen == 0 || docFreq == 0 {
		return 0
	}
	tf := float64(count) / float64(docLen)
	idf := IDF(stats.Docs, docFreq)

	norm := 1 - s.B
	if ratio := s.lengthRatio(docLen, stats); ratio > 0 {
		norm += s.B * ratio
	}
	denom := tf + s.K*norm
	if denom == 0 {
		return 0
	}
	return idf * tf * (s.K + 1) / denom
}

// lengthRatio is len(d)/avgdl under the configured measure.
func (s BM25) lengthRatio(docLen int, stats CorpusStats) float64 {
	if s.Length == TokenLength {
		if stats.AvgDocLen == 0 {
			return 0
		}
		return float64(docLen) / stats.AvgDocLen
	}
	if stats.NonEmptyDocs == 0 {
		return 0
	}
	avg := float64(stats.NonEmptyDocs) / float64(stats.Docs)
	return 1 / avg
}

// IDF returns ln(n) - ln(df).
func IDF(n, df int) float64 {
	return math.Log(float64(n)) - math.Log(float64(df))
}

// Frequency weighs a term by its raw count in the document.
type Frequency struct{}

// Weight implements Scorer.
func (Frequency) Weight(count, _, _ int, _ CorpusStats) float64 {
	return float64(count)
}

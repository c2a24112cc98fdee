package sparse

import (
	"sort"
	"strings"
)

// Vocabulary assigns every distinct corpus term a column in first-seen
// order. It is immutable once the owning index is built.
type Vocabulary struct {
	columns map[string]int
	terms   []string
}

func newVocabulary() *Vocabulary {
	return &Vocabulary{columns: make(map[string]int)}
}

func (v *Vocabulary) add(term string) int {
	if col, ok := v.columns[term]; ok {
		return col
	}
	col := len(v.terms)
	v.columns[term] = col
	v.terms = append(v.terms, term)
	return col
}

// Column returns the column assigned to term.
func (v *Vocabulary) Column(term string) (int, bool) {
	col, ok := v.columns[term]
	return col, ok
}

// Term returns the term stored at column col.
func (v *Vocabulary) Term(col int) string {
	return v.terms[col]
}

// Len is the number of distinct terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// queryColumns turns a query into the sorted, de-duplicated set of known
// columns. Unknown terms are dropped.
func (v *Vocabulary) queryColumns(query string) []int {
	seen := make(map[int]struct{})
	var cols []int
	for _, tok := range tokenize(query) {
		col, ok := v.columns[tok]
		if !ok {
			continue
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		cols = append(cols, col)
	}
	sort.Ints(cols)
	return cols
}

// tokenize splits already-normalized text on whitespace.
func tokenize(text string) []string {
	return strings.Fields(text)
}

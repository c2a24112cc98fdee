// Package corpus defines the document collection an index is built over and
// the store interface that supplies it along with display metadata.
package corpus

import "context"

// Variant selects which text column of the store backs a corpus.
type Variant string

const (
	Raw        Variant = "raw"
	Lemmatized Variant = "lemmatized"
)

// ParseVariant maps a configuration value onto a Variant.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case Raw, Lemmatized:
		return Variant(s), true
	}
	return "", false
}

// Document is a single corpus entry. ID is assigned by the store and is
// stable across corpus fetches.
type Document struct {
	ID   int64
	Text string
}

// Corpus is an ordered, immutable document sequence. Order defines the
// tie-break when two documents score equally.
type Corpus []Document

// IDs returns document ids in corpus order.
func (c Corpus) IDs() []int64 {
	ids := make([]int64, len(c))
	for i, d := range c {
		ids[i] = d.ID
	}
	return ids
}

// Texts returns document texts in corpus order.
func (c Corpus) Texts() []string {
	texts := make([]string, len(c))
	for i, d := range c {
		texts[i] = d.Text
	}
	return texts
}

// Record is the display metadata of one thesis. Missing fields are empty.
type Record struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Program    string `json:"program"`
	Student    string `json:"student"`
	Supervisor string `json:"supervisor"`
	Abstract   string `json:"abstract"`
	FileLink   string `json:"file_link"`
}

// Thesis is a full entry as written by the ingestion side of a store.
type Thesis struct {
	ID          int64
	Year        int
	Title       string
	Student     string
	Supervisors []string
	Program     string
	Abstract    string
	Lemmatized  string
	FileLink    string
}

// DataStore supplies corpora and records. Implementations must return the
// same ids from Corpus and accept them in Record.
type DataStore interface {
	Corpus(ctx context.Context, variant Variant) (Corpus, error)
	Record(ctx context.Context, id int64) (Record, error)
}

// Package preprocess normalizes raw text into the space-separated token
// strings indexes are built from and queried with.
package preprocess

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/kljensen/snowball/russian"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Preprocessor turns raw text into a normalized token string. An empty
// result means nothing meaningful remained.
type Preprocessor interface {
	Preprocess(text string) string
}

// Func adapts a function to Preprocessor.
type Func func(string) string

// Preprocess implements Preprocessor.
func (f Func) Preprocess(text string) string { return f(text) }

// Raw passes text through with whitespace collapsed.
var Raw = Func(func(text string) string {
	return strings.Join(strings.Fields(text), " ")
})

// Lookup resolves a preprocessor by configuration name.
func Lookup(name string) (Preprocessor, error) {
	switch name {
	case "lemmatize":
		return Lemmatizer{}, nil
	case "raw":
		return Raw, nil
	default:
		return nil, apperrors.Configf("unknown preprocessor %q", name)
	}
}

// Lemmatizer lower-cases text, splits it on non-alphanumeric boundaries,
// drops stop-words, numbers and single letters, and reduces every word to
// its Snowball stem (Russian for Cyrillic words, English otherwise).
type Lemmatizer struct{}

// Preprocess implements Preprocessor.
func (Lemmatizer) Preprocess(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// Tokenize returns the normalized terms of text in order.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len([]rune(word)) < 2 || isNumber(word) {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		if term := stem(word); term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

func stem(word string) string {
	if isCyrillic(word) {
		return russian.Stem(word, false)
	}
	return english.Stem(word, false)
}

func isCyrillic(word string) bool {
	for _, r := range word {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

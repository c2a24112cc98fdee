package model

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// KeyedVectors is a word -> vector table read from the word2vec text or
// binary format. Sentence vectors are the mean of the unit-normalized vectors
// of known words.
type KeyedVectors struct {
	name    string
	dim     int
	vectors map[string][]float32
	// bare maps an untagged word to its most frequent "word_POS" key.
	bare   map[string]string
	tagger Tagger
}

// Tagger rewrites tokens into the key space of a model, for example by
// appending part-of-speech suffixes.
type Tagger interface {
	Tag(tokens []string) []string
}

// ReadVectors parses the word2vec format from r. isBinary selects the binary
// layout (little-endian float32 values) over the text layout.
func ReadVectors(name string, r io.Reader, isBinary bool) (*KeyedVectors, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed header %q", strings.TrimSpace(header))
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("vocabulary size: %w", err)
	}
	dim, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("vector size: %w", err)
	}

	kv := &KeyedVectors{
		name:    name,
		dim:     dim,
		vectors: make(map[string][]float32, count),
		bare:    make(map[string]string),
	}
	for i := 0; i < count; i++ {
		var word string
		var vec []float32
		if isBinary {
			word, vec, err = readBinaryEntry(br, dim)
		} else {
			word, vec, err = readTextEntry(br, dim)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		kv.add(word, vec)
	}
	return kv, nil
}

func (kv *KeyedVectors) add(word string, vec []float32) {
	kv.vectors[word] = vec
	if i := strings.LastIndexByte(word, '_'); i > 0 && isTag(word[i+1:]) {
		base := word[:i]
		if _, ok := kv.bare[base]; !ok {
			kv.bare[base] = word
		}
	}
}

func isTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func readBinaryEntry(br *bufio.Reader, dim int) (string, []float32, error) {
	word, err := br.ReadString(' ')
	if err != nil {
		return "", nil, err
	}
	word = strings.TrimLeft(strings.TrimSuffix(word, " "), "\n")
	raw := make([]byte, 4*dim)
	if _, err := io.ReadFull(br, raw); err != nil {
		return "", nil, fmt.Errorf("reading vector of %q: %w", word, err)
	}
	vec := make([]float32, dim)
	for j := range vec {
		vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
	}
	return word, vec, nil
}

func readTextEntry(br *bufio.Reader, dim int) (string, []float32, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != dim+1 {
		return "", nil, fmt.Errorf("expected %d values, got %d", dim, len(fields)-1)
	}
	vec := make([]float32, dim)
	for j, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return "", nil, fmt.Errorf("value %d of %q: %w", j+1, fields[0], err)
		}
		vec[j] = float32(v)
	}
	return fields[0], vec, nil
}

// Lookup returns the vector of token, falling back to the most frequent
// tagged form of an untagged token.
func (kv *KeyedVectors) Lookup(token string) ([]float32, bool) {
	if v, ok := kv.vectors[token]; ok {
		return v, true
	}
	if key, ok := kv.bare[token]; ok {
		return kv.vectors[key], true
	}
	return nil, false
}

// Name implements Model.
func (kv *KeyedVectors) Name() string { return kv.name }

// Dimension implements Model.
func (kv *KeyedVectors) Dimension() int { return kv.dim }

// Len is the vocabulary size.
func (kv *KeyedVectors) Len() int { return len(kv.vectors) }

// Vectorize averages the unit-normalized vectors of the known tokens of
// text. Text without known tokens maps to the zero vector.
func (kv *KeyedVectors) Vectorize(_ context.Context, text string) ([]float64, error) {
	tokens := strings.Fields(text)
	if kv.tagger != nil {
		tokens = kv.tagger.Tag(tokens)
	}
	sum := zeros(kv.dim)
	var n int
	for _, tok := range tokens {
		v, ok := kv.Lookup(tok)
		if !ok {
			continue
		}
		var sq float64
		for _, x := range v {
			sq += float64(x) * float64(x)
		}
		norm := math.Sqrt(sq)
		if norm == 0 {
			continue
		}
		for j, x := range v {
			sum[j] += float64(x) / norm
		}
		n++
	}
	if n == 0 {
		return sum, nil
	}
	for j := range sum {
		sum[j] /= float64(n)
	}
	return sum, nil
}

// Close implements Model.
func (kv *KeyedVectors) Close() error {
	kv.vectors = nil
	kv.bare = nil
	return nil
}

func loadVectors(name, path string, isBinary bool, tagger Tagger) (*KeyedVectors, error) {
	if err := checkExists(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening model %s: %w", path, err)
	}
	defer f.Close()

	kv, err := ReadVectors(name, f, isBinary)
	if err != nil {
		return nil, fmt.Errorf("reading model %s: %w", path, err)
	}
	kv.tagger = tagger
	return kv, nil
}

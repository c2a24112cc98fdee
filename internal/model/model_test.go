package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

const textVectors = `4 2
кот_NOUN 3 4
кот_VERB 1 0
собака_NOUN 0 2
рыба 0 0
`

func TestReadTextVectors(t *testing.T) {
	kv, err := ReadVectors("tiny", strings.NewReader(textVectors), false)
	require.NoError(t, err)
	assert.Equal(t, 2, kv.Dimension())
	assert.Equal(t, 4, kv.Len())

	v, ok := kv.Lookup("кот")
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, v, "untagged lookups use the first tagged form")

	_, ok = kv.Lookup("слон")
	assert.False(t, ok)
}

func TestReadBinaryVectors(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("2 3\n")
	for _, e := range []struct {
		word string
		vec  []float32
	}{{"a", []float32{1, 2, 3}}, {"b", []float32{-1, 0.5, 0}}} {
		buf.WriteString(e.word + " ")
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, e.vec))
		buf.WriteByte('\n')
	}

	kv, err := ReadVectors("bin", &buf, true)
	require.NoError(t, err)
	b, ok := kv.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, []float32{-1, 0.5, 0}, b)
}

func TestVectorizeMeanOfUnitVectors(t *testing.T) {
	kv, err := ReadVectors("tiny", strings.NewReader(textVectors), false)
	require.NoError(t, err)

	v, err := kv.Vectorize(context.Background(), "кот собака слон")
	require.NoError(t, err)
	assert.InDelta(t, (0.6+0)/2, v[0], 1e-6)
	assert.InDelta(t, (0.8+1)/2, v[1], 1e-6)

	empty, err := kv.Vectorize(context.Background(), "слон рыба")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, empty)
}

type suffixTagger string

func (s suffixTagger) Tag(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t + string(s)
	}
	return out
}

func TestWord2VecLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.txt")
	require.NoError(t, os.WriteFile(path, []byte(textVectors), 0o644))

	m, err := (&Word2Vec{Tagger: suffixTagger("_VERB")}).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", m.Name())

	v, err := m.Vectorize(context.Background(), "кот")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, v)
	require.NoError(t, m.Close())

	_, err = (&Word2Vec{}).Load(filepath.Join(dir, "missing.bin"))
	assert.True(t, errors.Is(err, apperrors.ErrModelNotFound))
}

func TestFastTextRejectsBinaryModels(t *testing.T) {
	_, err := (&FastText{}).Load("cc.ru.300.bin")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Первое предложение. Второе!  Третье?\nЧетвёртое без точки")
	assert.Equal(t, []string{"Первое предложение.", "Второе!", "Третье?", "Четвёртое без точки"}, got)
	assert.Equal(t, []string{"v1.2 stays whole"}, SplitSentences("v1.2 stays whole"))
	assert.Empty(t, SplitSentences("   "))
}

func embeddingServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if req.Model != "sbert" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		calls.Add(1)
		var resp embeddingResponse
		for i, in := range req.Input {
			vec := []float64{float64(len([]rune(in))), 1}
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float64 `json:"embedding"`
			}{Index: i, Embedding: vec})
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestSentenceModel(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, &calls)
	defer srv.Close()

	p := &Sentence{Name: "bert", Endpoint: srv.URL, BatchSize: 1}
	m, err := p.Load("sbert")
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 2, m.Dimension())
	assert.Equal(t, "bert", m.Name())

	v, err := m.Vectorize(context.Background(), "Аб. Вгде.")
	require.NoError(t, err)
	assert.Equal(t, []float64{(3 + 5) / 2.0, 1}, v)
	assert.Equal(t, int64(3), calls.Load(), "one probe plus one request per sentence")

	short, err := m.Vectorize(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, short)

	_, err = p.Load("unknown")
	assert.True(t, errors.Is(err, apperrors.ErrModelNotFound))
}

func TestDownloaderGzip(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(textVectors))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gz.Bytes())
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "models", "cc.vec")
	require.NoError(t, (&FastText{Downloader: NewDownloader(srv.Client())}).Download(context.Background(), srv.URL+"/cc.vec.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, textVectors, string(data))
}

func TestDownloaderZipPicksMatchingMember(t *testing.T) {
	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	for name, body := range map[string]string{"meta.json": "{}", "model.bin": "BINARY"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(archive.Bytes())
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "w2v.bin")
	p := &Word2Vec{Downloader: NewDownloader(srv.Client())}
	require.NoError(t, p.Download(context.Background(), srv.URL+"/220.zip", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "BINARY", string(data))

	require.NoError(t, p.Download(context.Background(), srv.URL+"/220.zip", dest))
	assert.Equal(t, int64(1), hits.Load(), "an existing model is not fetched again")
}

func TestDownloaderNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := NewDownloader(srv.Client()).Fetch(context.Background(), srv.URL+"/missing.gz", filepath.Join(t.TempDir(), "m.vec"))
	assert.True(t, errors.Is(err, apperrors.ErrModelNotFound))
	assert.Equal(t, int64(1), hits.Load())
}

func TestWord2VecDownloadNeedsZip(t *testing.T) {
	err := (&Word2Vec{}).Download(context.Background(), "http://example.com/model.tar", "m.bin")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestSentenceCannotDownload(t *testing.T) {
	err := (&Sentence{}).Download(context.Background(), "", "")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

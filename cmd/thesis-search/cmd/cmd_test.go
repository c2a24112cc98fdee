package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// setup seeds a sqlite catalogue and writes a config pointing at it.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "theses.db")

	s, err := store.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	for _, th := range []corpus.Thesis{
		{ID: 1, Year: 2022, Title: "Кошки", Student: "Иванов", Supervisors: []string{"Петров"}, Program: "ПМИ", Abstract: "собаки и кошки"},
		{ID: 2, Year: 2023, Title: "Графы", Student: "Смирнов", Program: "ПМИ", Abstract: "графы и деревья"},
		{ID: 3, Title: "Пустая"},
	} {
		require.NoError(t, s.AddThesis(context.Background(), th))
	}
	require.NoError(t, s.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("store:\n  driver: sqlite\n  path: %s\nindex:\n  indexFolder: %s\n  modelFolder: %s\n",
		dbPath, filepath.Join(dir, "indices"), filepath.Join(dir, "models"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestShowConfig(t *testing.T) {
	cfgPath := setup(t)
	out, err := run(t, "show-config", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "defaultIndex: bm25")
	assert.Contains(t, out, "driver: sqlite")
}

func TestLemmatizeThenSearch(t *testing.T) {
	cfgPath := setup(t)

	out, err := run(t, "lemmatize", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "lemmatized 3 theses\n", out)

	out, err = run(t, "search", "собаки", "--config", cfgPath, "--style", "json", "-n", "1")
	require.NoError(t, err)
	var results []struct {
		ID    int64   `json:"id"`
		Title string  `json:"title"`
		Score float64 `json:"score"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, "Кошки", results[0].Title)
	assert.Greater(t, results[0].Score, 0.0)

	out, err = run(t, "search", "графы", "--config", cfgPath, "--style", "table", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "название")
	assert.Contains(t, out, "Графы")
	assert.Contains(t, out, "Смирнов")
}

func TestSearchRejectsBadInput(t *testing.T) {
	cfgPath := setup(t)

	_, err := run(t, "search", "кошки", "--config", cfgPath, "--style", "xml")
	assert.ErrorIs(t, err, apperrors.ErrConfig)

	_, err = run(t, "search", "кошки", "--config", cfgPath, "--index", "nope")
	assert.ErrorIs(t, err, apperrors.ErrConfig)

	_, err = run(t, "search", "и на", "--config", cfgPath)
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)
}

func TestSearchMissingModelSuggestsDownload(t *testing.T) {
	cfgPath := setup(t)
	_, err := run(t, "search", "кошки", "--config", cfgPath, "--index", "w2v")
	require.ErrorIs(t, err, apperrors.ErrModelNotFound)
	assert.Contains(t, err.Error(), "thesis-search download w2v")
}

func TestDownloadNeedsModel(t *testing.T) {
	cfgPath := setup(t)
	_, err := run(t, "download", "bm25", "--config", cfgPath)
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestBuildSparse(t *testing.T) {
	cfgPath := setup(t)
	out, err := run(t, "build", "--index", "bm25", "--index", "freq", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "bm25\tmatrix\t3 documents")
	assert.Contains(t, out, "freq\tmatrix\t3 documents")
}

func TestDownloadBuildAndSearchFastText(t *testing.T) {
	cfgPath := setup(t)
	dir := filepath.Dir(cfgPath)

	dog := preprocess.Tokenize("собаки")[0]
	graph := preprocess.Tokenize("графы")[0]
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := fmt.Fprintf(zw, "2 2\n%s 1 0\n%s 0 1\n", dog, graph)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gz.Bytes())
	}))
	defer srv.Close()

	out, err := run(t, "download", "ft", "--config", cfgPath, "--url", srv.URL+"/cc.ru.300.vec.gz")
	require.NoError(t, err)
	assert.Contains(t, out, "cc.ru.300 saved to")
	assert.FileExists(t, filepath.Join(dir, "models", "cc.ru.300.vec"))

	out, err = run(t, "download", "ft", "--config", cfgPath, "--url", srv.URL+"/cc.ru.300.vec.gz")
	require.NoError(t, err)
	assert.Contains(t, out, "already present")

	_, err = run(t, "lemmatize", "--config", cfgPath)
	require.NoError(t, err)
	out, err = run(t, "build", "--index", "ft", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ft\tfasttext\t3 documents")

	out, err = run(t, "search", "графы", "--index", "ft", "--config", cfgPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "1. Графы (2023)"), out)
}

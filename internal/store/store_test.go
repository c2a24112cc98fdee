package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "theses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddThesis(ctx, corpus.Thesis{
		ID:          1,
		Year:        2021,
		Title:       "Поиск по тезисам",
		Student:     "Иванов",
		Supervisors: []string{"Петров", "Сидоров"},
		Program:     "Прикладная математика",
		Abstract:    "кошки и собаки",
		Lemmatized:  "кошк собак",
		FileLink:    "https://example.org/1.pdf",
	}))
	require.NoError(t, s.AddThesis(ctx, corpus.Thesis{
		ID:          2,
		Title:       "Без руководителя",
		Program:     "Прикладная математика",
		Abstract:    "текст",
		Supervisors: []string{"Петров"},
	}))
	require.NoError(t, s.AddThesis(ctx, corpus.Thesis{ID: 3, Title: "Пустой"}))
}

func TestCorpusVariants(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	raw, err := s.Corpus(ctx, corpus.Raw)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, raw.IDs())
	assert.Equal(t, []string{"кошки и собаки", "текст", ""}, raw.Texts())

	lem, err := s.Corpus(ctx, corpus.Lemmatized)
	require.NoError(t, err)
	assert.Equal(t, []string{"кошк собак", "", ""}, lem.Texts())

	_, err = s.Corpus(ctx, corpus.Variant("html"))
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

func TestRecord(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	rec, err := s.Record(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "Поиск по тезисам", rec.Title)
	assert.Equal(t, "2021", rec.Year)
	assert.Equal(t, "Прикладная математика", rec.Program)
	assert.Equal(t, "Иванов", rec.Student)
	assert.Contains(t, rec.Supervisor, "Петров")
	assert.Contains(t, rec.Supervisor, ", ")
	assert.Contains(t, rec.Supervisor, "Сидоров")
	assert.Equal(t, "кошки и собаки", rec.Abstract)
	assert.Equal(t, "https://example.org/1.pdf", rec.FileLink)

	rec, err = s.Record(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Пустой", rec.Title)
	assert.Empty(t, rec.Year)
	assert.Empty(t, rec.Program)
	assert.Empty(t, rec.Supervisor)
	assert.Empty(t, rec.FileLink)

	_, err = s.Record(ctx, 42)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 404, apperrors.HTTPStatusCode(err))
}

func TestProgramsAndSupervisorsAreShared(t *testing.T) {
	s := openTemp(t)
	seed(t, s)

	var programs, supervisors int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM programs").Scan(&programs))
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM supervisors").Scan(&supervisors))
	assert.Equal(t, 1, programs)
	assert.Equal(t, 2, supervisors)
}

func TestAddThesisRollsBackOnDuplicate(t *testing.T) {
	s := openTemp(t)
	seed(t, s)

	err := s.AddThesis(context.Background(), corpus.Thesis{
		ID:          1,
		Title:       "дубликат",
		Supervisors: []string{"Новиков"},
	})
	require.Error(t, err)

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM supervisors WHERE name = 'Новиков'").Scan(&n))
	assert.Zero(t, n)
}

func TestSetLemmatized(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetLemmatized(ctx, corpus.Corpus{{ID: 2, Text: "текст"}, {ID: 3, Text: ""}}))

	lem, err := s.Corpus(ctx, corpus.Lemmatized)
	require.NoError(t, err)
	assert.Equal(t, []string{"кошк собак", "текст", ""}, lem.Texts())
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	require.NoError(t, s.Migrate(context.Background()))

	c, err := s.Corpus(context.Background(), corpus.Raw)
	require.NoError(t, err)
	assert.Len(t, c, 3)
}

func TestRebind(t *testing.T) {
	pg := newStore(nil, postgresDialect)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := newStore(nil, sqliteDialect)
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestOpenByDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "theses.db")}}
	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	seed(t, s)
	raw, err := s.RawTexts(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 3)
	require.NoError(t, s.Close())

	cfg.Store.Driver = "mysql"
	_, err = Open(context.Background(), cfg)
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

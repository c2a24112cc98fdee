package preprocess

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

func TestLemmatizerDropsNoise(t *testing.T) {
	got := Lemmatizer{}.Preprocess("  И кот, и 2021 собака!\n")
	assert.Equal(t, "кот собак", got)
}

func TestLemmatizerConflatesInflections(t *testing.T) {
	l := Lemmatizer{}
	assert.Equal(t, l.Preprocess("собаки"), l.Preprocess("собака"))
	assert.Equal(t, l.Preprocess("searching"), l.Preprocess("search"))
}

func TestLemmatizerEmptyResult(t *testing.T) {
	assert.Empty(t, Lemmatizer{}.Preprocess("и в на 42 ... !"))
	assert.Empty(t, Lemmatizer{}.Preprocess(""))
}

func TestRawCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "Кот и собака.", Raw.Preprocess(" Кот\n и\tсобака. "))
}

func TestLookup(t *testing.T) {
	p, err := Lookup("lemmatize")
	require.NoError(t, err)
	assert.IsType(t, Lemmatizer{}, p)

	_, err = Lookup("raw")
	require.NoError(t, err)

	_, err = Lookup("spacy")
	assert.True(t, errors.Is(err, apperrors.ErrConfig))
}

var benchTexts = map[string]string{
	"short": "Разработка поисковой системы по выпускным работам",
	"long": strings.Repeat(`В работе рассматриваются методы информационного поиска: ранжирование
документов по формуле BM25, векторные представления слов word2vec и fastText,
а также эмбеддинги предложений. Проведено сравнение качества на корпусе
выпускных квалификационных работ студентов. `, 20),
}

func BenchmarkLemmatize(b *testing.B) {
	var lem Lemmatizer
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = lem.Preprocess(text)
			}
		})
	}
}

func BenchmarkLemmatizeParallel(b *testing.B) {
	var lem Lemmatizer
	text := benchTexts["long"]
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = lem.Preprocess(text)
		}
	})
}

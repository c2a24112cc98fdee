package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/logger"
)

type fakeEngines struct {
	mu       sync.Mutex
	calls    []string
	lastN    int
	delay    time.Duration
	response []searcher.Result
	err      error
}

func (f *fakeEngines) Search(ctx context.Context, indexType, query string, n int) ([]searcher.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, indexType+":"+query)
	f.lastN = n
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.response) > n {
		return f.response[:n], nil
	}
	return f.response, nil
}

func (f *fakeEngines) IndexTypes() []string { return []string{"bm25", "w2v"} }
func (f *fakeEngines) Loaded(t string) bool { return t == "bm25" }
func (f *fakeEngines) callCount() int       { f.mu.Lock(); defer f.mu.Unlock(); return len(f.calls) }

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.SearchEvent
}

func (r *recordingTracker) Track(e analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memBackend) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memBackend) FlushByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string]string{}
	return n, nil
}

func results() []searcher.Result {
	return []searcher.Result{
		{Record: corpus.Record{ID: 2, Title: "второй"}, Score: 0.9},
		{Record: corpus.Record{ID: 1, Title: "первый"}, Score: 0.5},
		{Record: corpus.Record{ID: 3, Title: "третий"}, Score: 0},
	}
}

func opts() Options {
	return Options{DefaultIndex: "bm25", DefaultLimit: 2, MaxResults: 3, RequestTimeout: time.Second}
}

func get(h http.HandlerFunc, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-1"))
	h(rec, req)
	return rec
}

func TestSearchReturnsRankedRecords(t *testing.T) {
	engines := &fakeEngines{response: results()}
	tracker := &recordingTracker{}
	h := New(engines, nil, tracker, nil, opts())

	rec := get(h.Search, "/api/v1/search?q=кот")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cache.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "bm25", resp.Index)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, int64(2), resp.Results[0].ID)
	assert.Equal(t, "второй", resp.Results[0].Title)
	assert.InDelta(t, 0.9, resp.Results[0].Score, 1e-12)

	require.Len(t, tracker.events, 1)
	ev := tracker.events[0]
	assert.Equal(t, analytics.EventSearch, ev.Type)
	assert.Equal(t, 2, ev.Returned)
	assert.Equal(t, "req-1", ev.RequestID)
}

func TestSearchValidatesParameters(t *testing.T) {
	engines := &fakeEngines{response: results()}
	h := New(engines, nil, nil, nil, opts())

	assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search?q=a&limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(h.Search, "/api/v1/search?q=a&limit=x").Code)

	rec := get(h.Search, "/api/v1/search?q=a&index=w2v&limit=50")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, engines.lastN)
	assert.Equal(t, "w2v:a", engines.calls[len(engines.calls)-1])
}

func TestSearchMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		event  analytics.EventType
	}{
		{"empty query", apperrors.New(apperrors.ErrEmptyQuery, http.StatusBadRequest, "nothing left"), http.StatusBadRequest, analytics.EventEmptyQuery},
		{"unknown index", apperrors.Configf("index type %q is not enabled", "x"), http.StatusBadRequest, analytics.EventError},
		{"missing model", apperrors.ModelNotFoundf("no model file"), http.StatusServiceUnavailable, analytics.EventError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &recordingTracker{}
			h := New(&fakeEngines{err: tt.err}, nil, tracker, nil, opts())
			rec := get(h.Search, "/api/v1/search?q=и")
			assert.Equal(t, tt.status, rec.Code)
			require.Len(t, tracker.events, 1)
			assert.Equal(t, tt.event, tracker.events[0].Type)
		})
	}
}

func TestSearchTimeout(t *testing.T) {
	o := opts()
	o.RequestTimeout = 10 * time.Millisecond
	h := New(&fakeEngines{delay: time.Second}, nil, nil, nil, o)
	assert.Equal(t, http.StatusGatewayTimeout, get(h.Search, "/api/v1/search?q=a").Code)
}

func TestZeroResultEvent(t *testing.T) {
	tracker := &recordingTracker{}
	h := New(&fakeEngines{response: []searcher.Result{{Record: corpus.Record{ID: 1}}}}, nil, tracker, nil, opts())
	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=a").Code)
	assert.Equal(t, analytics.EventZeroResult, tracker.events[0].Type)
}

func TestSearchUsesCache(t *testing.T) {
	engines := &fakeEngines{response: results()}
	qc := cache.New(&memBackend{data: map[string]string{}}, time.Minute)
	tracker := &recordingTracker{}
	h := New(engines, qc, tracker, nil, opts())

	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=Кот").Code)
	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=кот").Code)
	assert.Equal(t, 1, engines.callCount())
	assert.True(t, tracker.events[1].CacheHit)

	rec := get(h.CacheStats, "/api/v1/cache/stats")
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1.0, stats["hits"])

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusOK, get(h.Search, "/api/v1/search?q=кот").Code)
	assert.Equal(t, 2, engines.callCount())
}

func TestIndexes(t *testing.T) {
	h := New(&fakeEngines{}, nil, nil, nil, opts())
	rec := get(h.Indexes, "/api/v1/indexes")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Indexes []struct {
			Name    string `json:"name"`
			Loaded  bool   `json:"loaded"`
			Default bool   `json:"default"`
		} `json:"indexes"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Indexes, 2)
	assert.Equal(t, "bm25", body.Indexes[0].Name)
	assert.True(t, body.Indexes[0].Loaded)
	assert.True(t, body.Indexes[0].Default)
	assert.False(t, body.Indexes[1].Loaded)
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	h := New(&fakeEngines{}, nil, nil, nil, opts())
	assert.Equal(t, http.StatusOK, get(h.CacheStats, "/api/v1/cache/stats").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(h.CacheInvalidate, "/api/v1/cache/invalidate").Code)
}

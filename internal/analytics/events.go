package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventEmptyQuery EventType = "empty_query"
	EventError      EventType = "error"
)

// SearchEvent describes one served search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Index     string    `json:"index"`
	Query     string    `json:"query"`
	Limit     int       `json:"limit"`
	Returned  int       `json:"returned"`
	TopScore  float64   `json:"top_score"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

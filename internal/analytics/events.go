// Package analytics records what readers search for: the searcher tracks
// one SearchEvent per query, the Collector ships them to Kafka, and the
// Aggregator folds the topic back into query statistics.
package analytics

import "time"

type EventType string

const (
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
)

type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// TypeFor classifies an executed search.
func TypeFor(totalHits int, cacheHit bool) EventType {
	switch {
	case totalHits == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}

// Package metrics keeps in-memory statistics about recent builds for the
// operator stats endpoint. The durable record lives in the history
// database; this store answers "how is the service doing right now"
// without a query.
package metrics

import "time"

// BuildSample is one completed build request.
type BuildSample struct {
	// DocumentID is the repository document identifier.
	DocumentID string `json:"document_id"`

	// Variant is the artifact variant served ("plain", "searchable").
	Variant string `json:"variant"`

	// Duration is the wall-clock time of the request.
	Duration time.Duration `json:"duration_ns"`

	// CacheHit reports whether the artifact came from the cache.
	CacheHit bool `json:"cache_hit"`

	// Status is "success", "degraded" or "error".
	Status string `json:"status"`

	// Timestamp is when the build finished.
	Timestamp time.Time `json:"timestamp"`
}

// BuildStats is the aggregate over every recorded sample.
type BuildStats struct {
	TotalBuilds   int64         `json:"total_builds"`
	CacheHits     int64         `json:"cache_hits"`
	Degraded      int64         `json:"degraded"`
	Errors        int64         `json:"errors"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
	CacheHitRatio float64       `json:"cache_hit_ratio"`
}

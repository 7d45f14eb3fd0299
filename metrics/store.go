package metrics

import (
	"sync"
	"time"

	"pdf_backend/db"
)

// Store is thread-safe in-memory storage for build statistics. Recent
// samples sit in a circular buffer; aggregates are maintained
// incrementally so Stats never scans the buffer.
type Store struct {
	mu sync.RWMutex

	history []BuildSample
	cap     int
	head    int
	size    int

	totalBuilds   int64
	cacheHits     int64
	degraded      int64
	errors        int64
	totalDuration time.Duration
	maxDuration   time.Duration

	startTime time.Time
	version   string
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// HistoryCapacity is the number of recent builds retained.
	HistoryCapacity int

	// Version is the service version string reported by Snapshot.
	Version string
}

// DefaultStoreConfig returns sensible default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "0.0.0",
	}
}

// NewStore creates a Store. startTime is used for uptime reporting.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = DefaultStoreConfig().HistoryCapacity
	}

	return &Store{
		history:   make([]BuildSample, capacity),
		cap:       capacity,
		startTime: startTime,
		version:   config.Version,
	}
}

// Record adds a completed build sample.
func (s *Store) Record(sample BuildSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	s.history[s.head] = sample
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalBuilds++
	s.totalDuration += sample.Duration
	if sample.Duration > s.maxDuration {
		s.maxDuration = sample.Duration
	}
	if sample.CacheHit {
		s.cacheHits++
	}
	switch sample.Status {
	case db.StatusDegraded:
		s.degraded++
	case db.StatusError:
		s.errors++
	}
}

// Stats returns the aggregate over all recorded samples, including builds
// that have rotated out of the history buffer.
func (s *Store) Stats() BuildStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := BuildStats{
		TotalBuilds: s.totalBuilds,
		CacheHits:   s.cacheHits,
		Degraded:    s.degraded,
		Errors:      s.errors,
		MaxDuration: s.maxDuration,
	}
	if s.totalBuilds > 0 {
		stats.AvgDuration = s.totalDuration / time.Duration(s.totalBuilds)
		stats.CacheHitRatio = float64(s.cacheHits) / float64(s.totalBuilds)
	}
	return stats
}

// Recent returns up to limit samples, newest first.
func (s *Store) Recent(limit int) []BuildSample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.size {
		limit = s.size
	}

	samples := make([]BuildSample, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + s.cap) % s.cap
		samples = append(samples, s.history[idx])
	}
	return samples
}

// Snapshot is the full stats payload for the operator endpoint.
type Snapshot struct {
	Version string        `json:"version"`
	Uptime  time.Duration `json:"uptime_ns"`
	Stats   BuildStats    `json:"stats"`
	Recent  []BuildSample `json:"recent"`
}

// Snapshot returns the current statistics with uptime and recent builds.
func (s *Store) Snapshot(recentLimit int) Snapshot {
	return Snapshot{
		Version: s.version,
		Uptime:  time.Since(s.startTime),
		Stats:   s.Stats(),
		Recent:  s.Recent(recentLimit),
	}
}

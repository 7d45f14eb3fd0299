// Package auth guards the privileged endpoints.
// This file contains the rate limiter molecule protecting token
// verification against brute force.
package auth

import (
	"context"
	"sync"
	"time"
)

// attemptRecord tracks failed verifications inside a sliding window.
type attemptRecord struct {
	Count   int
	ResetAt time.Time
}

func (a attemptRecord) shouldReset() bool {
	return time.Now().After(a.ResetAt)
}

// RateLimiter tracks failed token verifications per client IP:
//   - each failure increments the counter
//   - after maxAttempts the IP is blocked for blockDuration
//   - a successful verification resets the counter
//
// Thread safety is provided via sync.RWMutex.
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
}

// NewRateLimiter creates a RateLimiter.
//
// Parameters:
//   - maxAttempts: failures before blocking (e.g. 5)
//   - window: counting window (e.g. time.Minute)
//   - block: block duration after max attempts (e.g. 5*time.Minute)
func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
	}
}

// Allow reports whether the IP may attempt verification. When blocked, the
// second return value is the time until the block expires.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.shouldReset() {
		return true, 0
	}
	if record.Count >= r.maxAttempts {
		return false, time.Until(record.ResetAt)
	}
	return true, 0
}

// RecordFailure records a failed verification for the IP. Hitting the
// maximum extends the reset time to the block duration.
func (r *RateLimiter) RecordFailure(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.attempts[ip]
	if !exists || record.shouldReset() {
		r.attempts[ip] = attemptRecord{Count: 1, ResetAt: time.Now().Add(r.window)}
		return
	}

	record.Count++
	if record.Count == r.maxAttempts {
		record.ResetAt = time.Now().Add(r.block)
	}
	r.attempts[ip] = record
}

// Reset clears the attempt record for an IP after a successful
// verification.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Cleanup removes expired records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, record := range r.attempts {
		if record.shouldReset() {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker runs Cleanup on an interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// AttemptCount returns the current failure count for an IP, 0 once the
// window expires.
func (r *RateLimiter) AttemptCount(ip string) int {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.shouldReset() {
		return 0
	}
	return record.Count
}

// Package auth guards the privileged endpoints.
// This file contains the Guard organism that composes the token verifier
// and rate limiter molecules into HTTP middleware.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// ErrRateLimited is returned when a client has exhausted its failed
// attempts and must wait out the block.
var ErrRateLimited = errors.New("auth: too many failed attempts")

// RateLimitError carries the remaining block duration. Matches
// ErrRateLimited via errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("auth: too many failed attempts, retry in %s", e.RetryAfter)
}

// Unwrap returns ErrRateLimited for errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// Default configuration for the guard.
const (
	// DefaultRateLimitAttempts is the number of failed attempts before blocking.
	DefaultRateLimitAttempts = 5

	// DefaultRateLimitWindow is the time window for counting attempts.
	DefaultRateLimitWindow = time.Minute

	// DefaultRateLimitBlock is the block duration after max attempts.
	DefaultRateLimitBlock = 5 * time.Minute
)

// GuardConfig holds configuration for the Guard.
type GuardConfig struct {
	// TokenHash is the bcrypt hash of the admin token.
	TokenHash string

	// RateLimitAttempts is failed attempts before blocking.
	RateLimitAttempts int

	// RateLimitWindow is the counting window.
	RateLimitWindow time.Duration

	// RateLimitBlock is the block duration after max attempts.
	RateLimitBlock time.Duration
}

// DefaultGuardConfig returns a GuardConfig with sensible defaults.
func DefaultGuardConfig(tokenHash string) GuardConfig {
	return GuardConfig{
		TokenHash:         tokenHash,
		RateLimitAttempts: DefaultRateLimitAttempts,
		RateLimitWindow:   DefaultRateLimitWindow,
		RateLimitBlock:    DefaultRateLimitBlock,
	}
}

// Guard protects privileged HTTP endpoints with a bearer token checked
// against a bcrypt hash, rate limited per client IP.
type Guard struct {
	tokenHash   string
	rateLimiter *RateLimiter
	logger      *logging.Logger
}

// NewGuard creates a Guard.
func NewGuard(config GuardConfig, logger *logging.Logger) (*Guard, error) {
	if config.TokenHash == "" {
		return nil, ErrInvalidHash
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.RateLimitAttempts <= 0 {
		config.RateLimitAttempts = DefaultRateLimitAttempts
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = DefaultRateLimitWindow
	}
	if config.RateLimitBlock <= 0 {
		config.RateLimitBlock = DefaultRateLimitBlock
	}

	return &Guard{
		tokenHash:   config.TokenHash,
		rateLimiter: NewRateLimiter(config.RateLimitAttempts, config.RateLimitWindow, config.RateLimitBlock),
		logger:      logger.Named("auth"),
	}, nil
}

// Authorize checks the request's bearer token against the admin hash with
// per-IP failure accounting. Every route that verifies the admin token must
// go through here so the hash gets uniform brute-force protection.
// Returns nil when authorized, a *RateLimitError when the client is
// blocked, and the verification error otherwise.
func (g *Guard) Authorize(r *http.Request) error {
	ip := clientIP(r)

	if allowed, remaining := g.rateLimiter.Allow(ip); !allowed {
		g.logger.Warn("rate limit exceeded",
			zap.String("ip", ip),
			zap.Duration("remaining", remaining))
		return &RateLimitError{RetryAfter: remaining}
	}

	if err := VerifyToken(bearerToken(r), g.tokenHash); err != nil {
		g.rateLimiter.RecordFailure(ip)
		g.logger.Warn("privileged request rejected",
			zap.String("ip", ip),
			zap.String("path", r.URL.Path),
			zap.Int("attempts", g.rateLimiter.AttemptCount(ip)))
		return err
	}

	g.rateLimiter.Reset(ip)
	return nil
}

// RequireToken wraps a handler so only requests carrying the admin token
// in an "Authorization: Bearer" header pass through.
func (g *Guard) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Authorize(r); err != nil {
			var limited *RateLimitError
			if errors.As(err, &limited) {
				w.Header().Set("Retry-After", formatRetryAfter(limited.RetryAfter))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// RateLimiter returns the underlying rate limiter so callers can start
// its cleanup ticker.
func (g *Guard) RateLimiter() *RateLimiter {
	return g.rateLimiter
}

// bearerToken extracts the token from the Authorization header; empty
// when absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// formatRetryAfter renders a duration as whole seconds for Retry-After.
func formatRetryAfter(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

// Package auth guards the privileged endpoints (cache bust, history).
// This file contains the token verifier molecule: the admin token is
// stored as a bcrypt hash, never in plaintext.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Token hashing configuration constants
const (
	// DefaultCost is the bcrypt cost factor for token hashing.
	// Cost 12 takes ~250ms on modern hardware, which is fine for the
	// rare privileged request.
	DefaultCost = 12

	// MinCost is the minimum acceptable bcrypt cost factor.
	MinCost = 10

	// MaxCost is the maximum bcrypt cost factor.
	MaxCost = 31
)

// Error definitions for token operations
var (
	// ErrEmptyToken is returned when attempting to hash or verify an
	// empty token.
	ErrEmptyToken = errors.New("auth: token cannot be empty")

	// ErrTokenMismatch is returned when token verification fails. It
	// intentionally does not reveal whether the stored hash was valid.
	ErrTokenMismatch = errors.New("auth: token does not match")

	// ErrInvalidHash is returned when the stored hash is malformed.
	ErrInvalidHash = errors.New("auth: invalid token hash format")

	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("auth: logger cannot be nil")
)

// HashToken creates a bcrypt hash of the admin token for storage in
// configuration. bcrypt embeds a random salt and the cost factor.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HashTokenWithCost creates a bcrypt hash with an explicit cost factor.
func HashTokenWithCost(token string, cost int) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if cost < MinCost || cost > MaxCost {
		return "", bcrypt.InvalidCostError(cost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken compares a presented token with the stored bcrypt hash
// using bcrypt's constant-time comparison.
//
// Returns nil on match, ErrTokenMismatch on mismatch, and ErrInvalidHash
// when the stored hash is malformed.
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrTokenMismatch
	default:
		return ErrInvalidHash
	}
}

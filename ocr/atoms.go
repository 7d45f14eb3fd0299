// Package ocr produces text-searchable PDFs.
//
// atoms.go contains pure validation functions with no dependencies.
package ocr

import (
	"errors"
	"regexp"
	"strings"
)

// Validation errors for OCR configuration values.
var (
	// ErrEmptyAPIKey indicates the backend API key is empty.
	ErrEmptyAPIKey = errors.New("OCR API key is empty")

	// ErrAPIKeyTooShort indicates the key is shorter than the backend issues.
	ErrAPIKeyTooShort = errors.New("OCR API key is too short (minimum 8 characters)")

	// ErrInvalidLanguage indicates an unusable language selector.
	ErrInvalidLanguage = errors.New("OCR language selector has invalid format")

	// ErrInvalidEngine indicates an unusable engine selector.
	ErrInvalidEngine = errors.New("OCR engine selector has invalid format")
)

// languagePattern matches the backend's three-letter language selectors
// (e.g. "eng", "fre", "ger") with an optional regional suffix.
var languagePattern = regexp.MustCompile(`^[a-z]{3}(-[a-z]{2,4})?$`)

// enginePattern matches backend engine selectors: short digit strings.
var enginePattern = regexp.MustCompile(`^[0-9]{1,2}$`)

// ValidateAPIKey validates the backend API key format.
// Pure function with no dependencies.
func ValidateAPIKey(apiKey string) error {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return ErrEmptyAPIKey
	}
	if len(trimmed) < 8 {
		return ErrAPIKeyTooShort
	}
	return nil
}

// ValidateLanguage validates an OCR language selector.
// Pure function with no dependencies.
func ValidateLanguage(language string) error {
	if !languagePattern.MatchString(language) {
		return ErrInvalidLanguage
	}
	return nil
}

// ValidateEngine validates a backend engine selector.
// Pure function with no dependencies.
func ValidateEngine(engine string) error {
	if !enginePattern.MatchString(engine) {
		return ErrInvalidEngine
	}
	return nil
}

// MaskAPIKey returns a masked rendering of the key safe for logs:
// first two characters followed by asterisks.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "****"
	}
	return apiKey[:2] + strings.Repeat("*", len(apiKey)-2)
}

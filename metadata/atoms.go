// Package metadata resolves document metadata and page-image references
// from the document index.
//
// atoms.go contains pure validation and field-defaulting functions.
package metadata

import (
	"errors"
	"regexp"
)

// Placeholder strings substituted for absent scalar fields. A title page is
// always rendered with visible text, never an empty region.
const (
	PlaceholderTitle       = "No title available"
	PlaceholderShelfMark   = "No shelf mark available"
	PlaceholderDOI         = "No DOI available"
	PlaceholderDateCreated = "No date created available"
	PlaceholderName        = "Not specified"
)

// Validation errors for document ids.
var (
	// ErrEmptyDocumentID indicates an empty or whitespace-only id.
	ErrEmptyDocumentID = errors.New("document id is empty")

	// ErrInvalidDocumentID indicates an id containing characters outside
	// the repository's id alphabet.
	ErrInvalidDocumentID = errors.New("document id has invalid format")
)

// documentIDPattern matches repository ids: alphanumeric, no separators.
// Keeping the alphabet tight also keeps ids safe to interpolate into index
// queries and artifact file names.
var documentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidateDocumentID validates a repository document id.
// Pure function with no dependencies.
func ValidateDocumentID(id string) error {
	if id == "" {
		return ErrEmptyDocumentID
	}
	if !documentIDPattern.MatchString(id) {
		return ErrInvalidDocumentID
	}
	return nil
}

// FirstOrDefault returns the first element of values, or fallback when the
// slice is empty or the first element is blank. Pure function.
func FirstOrDefault(values []string, fallback string) string {
	if len(values) == 0 || values[0] == "" {
		return fallback
	}
	return values[0]
}

// ListOrDefault returns values, or a single-element fallback list when
// values is empty. Pure function.
func ListOrDefault(values []string, fallback string) []string {
	if len(values) == 0 {
		return []string{fallback}
	}
	return values
}

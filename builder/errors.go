// Package builder runs the PDF generation pipeline: metadata resolution,
// image fetch and preprocessing, assembly, optional OCR, and artifact
// caching.
//
// errors.go defines the BuildError type carrying pipeline stage context.
package builder

import (
	"errors"
	"fmt"
)

// Pipeline stages recorded on BuildError.
const (
	StageResolve    = "resolve"
	StagePaths      = "paths"
	StageFetch      = "fetch"
	StagePreprocess = "preprocess"
	StageAssemble   = "assemble"
	StageOCR        = "ocr"
	StageCache      = "cache"
)

// ErrNilDependency indicates a required pipeline component is missing.
var ErrNilDependency = errors.New("builder: required dependency is nil")

// BuildError wraps a pipeline failure with the document and stage where it
// occurred. The wrapped error stays reachable for errors.Is/As, so callers
// can still distinguish metadata.ErrNotFound from a fetch failure.
type BuildError struct {
	DocumentID string
	Stage      string
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("builder: %s stage failed for document %s: %v", e.Stage, e.DocumentID, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// newBuildError wraps err with stage context.
func newBuildError(documentID, stage string, err error) *BuildError {
	return &BuildError{DocumentID: documentID, Stage: stage, Err: err}
}

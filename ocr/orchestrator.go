// Package ocr produces text-searchable PDFs.
//
// orchestrator.go implements the Orchestrator organism that drives OCR
// attempts across engines. It composes:
//   - client.go: BackendClient for the remote OCR API
//   - validate.go: searchable-PDF result validation
//   - logging.Logger: structured logging
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// ErrOCRFailed indicates every configured OCR attempt was exhausted.
// Callers degrade to the non-searchable PDF instead of failing the request.
var ErrOCRFailed = errors.New("ocr: all OCR attempts failed")

// SourceMode selects how the document reaches the backend.
type SourceMode string

const (
	// SourceURL stages the PDF under a public directory and passes the
	// backend a fetchable URL.
	SourceURL SourceMode = "url"

	// SourceUpload sends the PDF bytes as a multipart file upload.
	SourceUpload SourceMode = "upload"
)

// DefaultEngines is the backend engine attempt order: primary then
// fallback. Adding a third engine is a configuration change.
var DefaultEngines = []string{"2", "1"}

// OrchestratorConfig holds configuration for the OCR orchestrator.
type OrchestratorConfig struct {
	// Engines is the attempt order of backend engine selectors.
	Engines []string

	// DefaultLanguage is used when a request does not name one.
	DefaultLanguage string

	// Source is the default submission mode.
	Source SourceMode

	// PublicDir is the directory backing PublicBaseURL; SourceURL stages
	// working copies here.
	PublicDir string

	// PublicBaseURL is the externally fetchable prefix for PublicDir.
	PublicBaseURL string
}

// DefaultOrchestratorConfig returns sensible default configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Engines:         DefaultEngines,
		DefaultLanguage: "eng",
		Source:          SourceUpload,
	}
}

// Request holds per-call OCR options.
type Request struct {
	// DocumentID names the document; used for staged file names and logs.
	DocumentID string

	// Language overrides the configured default when non-empty.
	Language string

	// Engines overrides the configured attempt order when non-empty.
	// A caller selecting a primary engine passes it first.
	Engines []string

	// Source overrides the configured submission mode when non-empty.
	Source SourceMode
}

// Orchestrator runs the OCR attempt state machine:
//
//	Init -> attempt(engines[0]) -> Success
//	                            -> attempt(engines[1]) -> Success | Failed
//
// Each attempt submits the document, and on acceptance downloads and
// validates the searchable result. Any attempt error advances to the next
// engine; exhausting the list yields ErrOCRFailed.
type Orchestrator struct {
	client *BackendClient
	logger *logging.Logger
	config OrchestratorConfig
}

// NewOrchestrator creates a new OCR orchestrator.
func NewOrchestrator(client *BackendClient, logger *logging.Logger, config OrchestratorConfig) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("ocr: backend client cannot be nil")
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if len(config.Engines) == 0 {
		config.Engines = DefaultEngines
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = "eng"
	}
	if config.Source == "" {
		config.Source = SourceUpload
	}
	if config.Source == SourceURL && (config.PublicDir == "" || config.PublicBaseURL == "") {
		return nil, fmt.Errorf("ocr: URL source mode requires a public directory and base URL")
	}

	return &Orchestrator{
		client: client,
		logger: logger.Named("ocr"),
		config: config,
	}, nil
}

// MakeSearchable submits the PDF for OCR and returns the searchable
// replacement. On total failure it returns ErrOCRFailed; the caller keeps
// the original bytes. Staged working files are removed on every path.
func (o *Orchestrator) MakeSearchable(ctx context.Context, pdfData []byte, req Request) ([]byte, error) {
	language := req.Language
	if language == "" {
		language = o.config.DefaultLanguage
	}
	if err := ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	engines := req.Engines
	if len(engines) == 0 {
		engines = o.config.Engines
	}

	source := req.Source
	if source == "" {
		source = o.config.Source
	}

	submit := SubmitRequest{Language: language}
	switch source {
	case SourceUpload:
		submit.FileName = req.DocumentID + ".pdf"
		submit.FileData = pdfData
	case SourceURL:
		stagedPath, publicURL, err := o.stagePublicCopy(req.DocumentID, pdfData)
		if err != nil {
			return nil, err
		}
		defer os.Remove(stagedPath)
		submit.PDFURL = publicURL
	default:
		return nil, fmt.Errorf("ocr: unknown source mode %q", source)
	}

	log := o.logger.With(
		zap.String("document_id", req.DocumentID),
		zap.String("language", language),
	)

	var lastErr error
	for i, engine := range engines {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
		if err := ValidateEngine(engine); err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}

		submit.Engine = engine
		result, err := o.attempt(ctx, submit)
		if err != nil {
			lastErr = err
			log.Warn("OCR attempt failed",
				zap.String("engine", engine),
				zap.Int("attempt", i+1),
				zap.Error(err))
			continue
		}

		log.Info("OCR succeeded",
			zap.String("engine", engine),
			zap.Int("attempt", i+1),
			zap.Int("size_bytes", len(result)))
		return result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrOCRFailed, lastErr)
}

// attempt runs one submit-download-validate cycle.
func (o *Orchestrator) attempt(ctx context.Context, submit SubmitRequest) ([]byte, error) {
	accepted, err := o.client.Submit(ctx, submit)
	if err != nil {
		return nil, err
	}

	data, err := o.client.Download(ctx, accepted.SearchablePDFURL)
	if err != nil {
		return nil, err
	}

	if err := ValidateSearchablePDF(data); err != nil {
		return nil, err
	}
	return data, nil
}

// stagePublicCopy writes the working PDF under the public directory so the
// backend can fetch it by URL.
func (o *Orchestrator) stagePublicCopy(documentID string, pdfData []byte) (string, string, error) {
	if err := os.MkdirAll(o.config.PublicDir, 0755); err != nil {
		return "", "", fmt.Errorf("ocr: failed to create public directory: %w", err)
	}

	fileName := documentID + ".pdf"
	stagedPath := filepath.Join(o.config.PublicDir, fileName)
	if err := os.WriteFile(stagedPath, pdfData, 0644); err != nil {
		return "", "", fmt.Errorf("ocr: failed to stage public copy: %w", err)
	}

	return stagedPath, o.config.PublicBaseURL + "/" + fileName, nil
}

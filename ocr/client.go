// Package ocr produces text-searchable PDFs. It orchestrates a remote OCR
// backend with engine fallback, plus on-box engines (tesseract, LLM vision)
// for deployments without backend access.
//
// client.go implements the BackendClient molecule that wraps the remote OCR
// HTTP API. It composes:
//   - atoms.go: API key validation
//   - logging.Logger: structured logging
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// Common errors for OCR backend operations.
var (
	// ErrNilClient indicates the HTTP client is nil.
	ErrNilClient = errors.New("ocr: HTTP client cannot be nil")

	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("ocr: logger cannot be nil")

	// ErrBackendProcessing indicates the backend accepted the request but
	// reported a processing error. The orchestrator retries these with the
	// fallback engine.
	ErrBackendProcessing = errors.New("ocr: backend reported processing error")

	// ErrNoSearchablePDF indicates the backend succeeded but returned no
	// searchable PDF URL.
	ErrNoSearchablePDF = errors.New("ocr: backend returned no searchable PDF")
)

// BackendClientConfig holds configuration for the remote OCR backend client.
type BackendClientConfig struct {
	// Endpoint is the backend parse endpoint,
	// e.g. "https://apipro2.ocr.space/parse/image".
	Endpoint string

	// Timeout for backend requests. OCR of multi-page PDFs is slow;
	// the default is generous.
	Timeout time.Duration
}

// DefaultBackendClientConfig returns sensible default configuration.
func DefaultBackendClientConfig(endpoint string) BackendClientConfig {
	return BackendClientConfig{
		Endpoint: endpoint,
		Timeout:  3 * time.Minute,
	}
}

// SubmitRequest describes one OCR submission.
type SubmitRequest struct {
	// Language is the OCR language selector (e.g. "eng").
	Language string

	// Engine is the backend engine selector (e.g. "2").
	Engine string

	// PDFURL is the fetchable location of the PDF; used when FileData is
	// empty (fetch-by-url source mode).
	PDFURL string

	// FileName and FileData hold the PDF for upload-by-file source mode.
	FileName string
	FileData []byte
}

// SubmitResult is the backend's answer to a submission.
type SubmitResult struct {
	// SearchablePDFURL is where the searchable result can be downloaded.
	SearchablePDFURL string

	// ProcessingTime is how long the backend call took.
	ProcessingTime time.Duration
}

// backendResponse mirrors the backend's JSON response.
type backendResponse struct {
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	SearchablePDFURL      string          `json:"SearchablePDFURL"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// errorMessage flattens the backend's error field, which is sometimes a
// string and sometimes an array of strings.
func (r *backendResponse) errorMessage() string {
	if len(r.ErrorMessage) == 0 {
		return ""
	}

	var single string
	if err := json.Unmarshal(r.ErrorMessage, &single); err == nil {
		return single
	}

	var many []string
	if err := json.Unmarshal(r.ErrorMessage, &many); err == nil {
		return strings.Join(many, "; ")
	}

	return string(r.ErrorMessage)
}

// BackendClient wraps the remote OCR HTTP API.
//
// Thread-Safety:
//   - BackendClient is safe for concurrent use
//   - The HTTP client handles concurrency internally
type BackendClient struct {
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
	config     BackendClientConfig
}

// NewBackendClient creates a new OCR backend client.
//
// Returns an error if the API key is invalid or dependencies are nil.
func NewBackendClient(apiKey string, httpClient *http.Client, logger *logging.Logger, config BackendClientConfig) (*BackendClient, error) {
	if httpClient == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if err := ValidateAPIKey(apiKey); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("ocr: backend endpoint cannot be empty")
	}

	return &BackendClient{
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger.Named("ocr-backend"),
		config:     config,
	}, nil
}

// Submit sends one OCR request to the backend and returns the searchable
// PDF location.
//
// Returns ErrBackendProcessing when the backend reports a processing error
// (the signal for an engine-fallback retry) and ErrNoSearchablePDF when the
// backend succeeds without producing a result.
func (c *BackendClient) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	startTime := time.Now()

	log := c.logger.With(
		zap.String("engine", req.Engine),
		zap.String("language", req.Language),
		zap.Bool("by_upload", len(req.FileData) > 0),
	)
	log.Info("submitting document to OCR backend")

	var httpReq *http.Request
	var err error
	if len(req.FileData) > 0 {
		httpReq, err = c.buildUploadRequest(ctx, req)
	} else {
		httpReq, err = c.buildURLRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ocr: backend request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to read backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr: backend returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed backendResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("ocr: failed to decode backend response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return nil, fmt.Errorf("%w: engine %s: %s", ErrBackendProcessing, req.Engine, parsed.errorMessage())
	}
	if parsed.SearchablePDFURL == "" {
		return nil, fmt.Errorf("%w: engine %s", ErrNoSearchablePDF, req.Engine)
	}

	processingTime := time.Since(startTime)
	log.Info("OCR backend accepted document",
		zap.Duration("processing_time", processingTime))

	return &SubmitResult{
		SearchablePDFURL: parsed.SearchablePDFURL,
		ProcessingTime:   processingTime,
	}, nil
}

// formFields returns the common backend form fields for a request.
func (c *BackendClient) formFields(req SubmitRequest) map[string]string {
	return map[string]string{
		"apikey":                       c.apiKey,
		"language":                     req.Language,
		"isCreateSearchablePdf":        "true",
		"isSearchablePdfHideTextLayer": "true",
		"OCREngine":                    req.Engine,
		"scale":                        "true",
		"filetype":                     "PDF",
	}
}

// buildURLRequest submits the document as a fetchable URL (form-encoded).
func (c *BackendClient) buildURLRequest(ctx context.Context, req SubmitRequest) (*http.Request, error) {
	form := url.Values{}
	for key, value := range c.formFields(req) {
		form.Set(key, value)
	}
	form.Set("url", req.PDFURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return httpReq, nil
}

// buildUploadRequest submits the document as a multipart file upload.
func (c *BackendClient) buildUploadRequest(ctx context.Context, req SubmitRequest) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for key, value := range c.formFields(req) {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("ocr: failed to write form field: %w", err)
		}
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "document.pdf"
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to create form file: %w", err)
	}
	if _, err := part.Write(req.FileData); err != nil {
		return nil, fmt.Errorf("ocr: failed to write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ocr: failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	return httpReq, nil
}

// Download fetches the searchable PDF produced by the backend.
func (c *BackendClient) Download(ctx context.Context, resultURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr: searchable PDF download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr: searchable PDF download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to read searchable PDF: %w", err)
	}
	return data, nil
}

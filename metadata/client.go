// Package metadata resolves document metadata and page-image references
// from the document index.
//
// client.go implements the IndexClient molecule that wraps the index's HTTP
// query API. It composes:
//   - atoms.go: document id validation and field defaulting
//   - logging.Logger: structured logging
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// Common errors for index operations.
var (
	// ErrNotFound indicates the document id does not exist in the index.
	ErrNotFound = errors.New("metadata: document not found")

	// ErrNilClient indicates the HTTP client is nil.
	ErrNilClient = errors.New("metadata: HTTP client cannot be nil")

	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("metadata: logger cannot be nil")

	// ErrEmptyBaseURL indicates the index base URL is empty.
	ErrEmptyBaseURL = errors.New("metadata: index base URL cannot be empty")
)

// IndexDocument is the typed view of one index record. Field mapping from
// the index's dynamic-field schema happens once, here at the boundary.
type IndexDocument struct {
	ID            string
	Titles        []string
	Identifiers   []string
	DOIs          []string
	DatesCreated  []string
	Creators      []string
	Contributors  []string
	FolderNumbers []string
	FileSetIDs    []string
	Label         string
}

// indexResponse mirrors the index's JSON query response envelope.
type indexResponse struct {
	Response struct {
		NumFound int        `json:"numFound"`
		Docs     []indexDoc `json:"docs"`
	} `json:"response"`
}

// indexDoc mirrors the raw dynamic-field document returned by the index.
type indexDoc struct {
	ID            string   `json:"id"`
	Titles        []string `json:"title_tesim"`
	Identifiers   []string `json:"identifier_tesim"`
	DOIs          []string `json:"doi_tesim"`
	DatesCreated  []string `json:"date_created_tesim"`
	Creators      []string `json:"creator_tesim"`
	Contributors  []string `json:"contributor_tesim"`
	FolderNumbers []string `json:"folder_number_tesim"`
	FileSetIDs    []string `json:"file_set_ids_ssim"`
	Label         string   `json:"label_ssi"`
}

// ClientConfig holds configuration for the index client.
type ClientConfig struct {
	// BaseURL is the index core endpoint, e.g. "http://solr:8983/solr/repo".
	BaseURL string

	// Timeout for index queries.
	Timeout time.Duration
}

// DefaultClientConfig returns sensible default configuration.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 15 * time.Second,
	}
}

// Client queries the document index over HTTP.
//
// Thread-Safety:
//   - Client is safe for concurrent use
//   - Each query builds its own request; the HTTP client handles concurrency
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	config     ClientConfig
}

// NewClient creates a new index client.
//
// Parameters:
//   - httpClient: HTTP client for index queries
//   - logger: structured logger for operation tracking
//   - config: client configuration
//
// Returns an error if the base URL is empty or dependencies are nil.
func NewClient(httpClient *http.Client, logger *logging.Logger, config ClientConfig) (*Client, error) {
	if httpClient == nil {
		return nil, ErrNilClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.BaseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	return &Client{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		logger:     logger.Named("index-client"),
		config:     config,
	}, nil
}

// Lookup performs an exact-id query and returns the typed document.
// Returns ErrNotFound when no document matches the id.
func (c *Client) Lookup(ctx context.Context, id string) (*IndexDocument, error) {
	if err := ValidateDocumentID(id); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	queryURL := fmt.Sprintf("%s/select?%s", c.baseURL, url.Values{
		"q":  []string{fmt.Sprintf("id:%s", id)},
		"wt": []string{"json"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to create request: %w", err)
	}

	c.logger.Debug("querying index", zap.String("id", id))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata: index query failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to read index response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata: index returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var parsed indexResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("metadata: failed to decode index response: %w", err)
	}

	if len(parsed.Response.Docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	doc := parsed.Response.Docs[0]
	return &IndexDocument{
		ID:            doc.ID,
		Titles:        doc.Titles,
		Identifiers:   doc.Identifiers,
		DOIs:          doc.DOIs,
		DatesCreated:  doc.DatesCreated,
		Creators:      doc.Creators,
		Contributors:  doc.Contributors,
		FolderNumbers: doc.FolderNumbers,
		FileSetIDs:    doc.FileSetIDs,
		Label:         doc.Label,
	}, nil
}

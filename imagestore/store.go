// Package imagestore maps image labels to concrete paths in the page-image
// store and fetches their bytes.
//
// store.go implements the Store molecule that reads image bytes from the
// content store, by filesystem path or HTTP URL.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// MaxImageBytes bounds a single page-image read. Digitized folios are large
// TIFF-derived JPEGs; anything beyond this indicates a mis-resolved path.
const MaxImageBytes = 100 * 1024 * 1024

// FetchError indicates a page image could not be retrieved. An image fetch
// is never retried: a silently dropped page would mis-order the document,
// so the whole build fails instead.
type FetchError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("imagestore: failed to fetch %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreConfig holds configuration for the image store.
type StoreConfig struct {
	// HTTPClient is used for URL-addressed images. If nil, a default
	// client with Timeout is created.
	HTTPClient *http.Client

	// Timeout for HTTP image fetches.
	Timeout time.Duration
}

// DefaultStoreConfig returns sensible default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Timeout: 60 * time.Second,
	}
}

// Store fetches raw image bytes from the content store.
//
// Thread-Safety: safe for concurrent use; each fetch creates its own
// request or file handle.
type Store struct {
	httpClient *http.Client
}

// NewStore creates a new image store accessor.
func NewStore(config StoreConfig) *Store {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Store{httpClient: httpClient}
}

// Fetch reads the image bytes at path. Paths beginning with http:// or
// https:// are fetched over HTTP; everything else is read from the
// filesystem. Failures return a *FetchError.
func (s *Store) Fetch(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return s.fetchURL(ctx, path)
	}
	return s.fetchFile(ctx, path)
}

func (s *Store) fetchFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}
	if info.Size() > MaxImageBytes {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("image exceeds %d bytes", MaxImageBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}
	return data, nil
}

func (s *Store) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Path: url, Err: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Path: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Path: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, &FetchError{Path: url, Err: err}
	}
	if len(data) > MaxImageBytes {
		return nil, &FetchError{Path: url, Err: fmt.Errorf("image exceeds %d bytes", MaxImageBytes)}
	}
	return data, nil
}

package validation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pdf_backend/core"
)

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable  bool
	StatusCode int
	Message    string
	Latency    time.Duration
	Error      error
}

// ConnectivityChecker verifies the metadata index answers HTTP requests.
type ConnectivityChecker struct {
	timeout    time.Duration
	httpClient *http.Client
}

// NewConnectivityChecker creates a ConnectivityChecker with a 10 second
// timeout.
func NewConnectivityChecker() *ConnectivityChecker {
	return &ConnectivityChecker{timeout: 10 * time.Second}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func (c *ConnectivityChecker) WithHTTPClient(client *http.Client) *ConnectivityChecker {
	c.httpClient = client
	return c
}

// CheckIndexConnectivity probes the index ping handler. Any HTTP response
// counts as reachable; only transport failures do not.
func (c *ConnectivityChecker) CheckIndexConnectivity(indexURL string) ConnectivityResult {
	if err := ValidateBaseURL(indexURL); err != nil {
		return ConnectivityResult{
			Reachable: false,
			Message:   "Invalid URL format",
			Error:     core.ErrInvalidIndexURL(indexURL, err.Error()),
		}
	}

	client := c.httpClient
	if client == nil {
		client = &http.Client{Timeout: c.timeout}
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	pingURL := strings.TrimRight(indexURL, "/") + "/admin/ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return ConnectivityResult{
			Reachable: false,
			Message:   "Failed to create request",
			Error:     core.ErrIndexUnreachable(indexURL, err.Error()),
		}
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return ConnectivityResult{
			Reachable: false,
			Message:   "Index unreachable",
			Latency:   latency,
			Error:     core.ErrIndexUnreachable(indexURL, err.Error()),
		}
	}
	defer resp.Body.Close()

	return ConnectivityResult{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Index answered with status %d", resp.StatusCode),
		Latency:    latency,
	}
}

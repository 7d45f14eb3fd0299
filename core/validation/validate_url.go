package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateBaseURL validates that a URL has an http or https scheme and a
// host. Pure function, no side effects.
func ValidateBaseURL(baseURL string) error {
	baseURL = strings.TrimSpace(baseURL)

	if baseURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

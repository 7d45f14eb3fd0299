package core

import (
	"fmt"
)

// ConfigError is a configuration problem with an actionable instruction.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeEnvFileMissing   = "ENV_FILE_MISSING"
	ErrCodeMissingConfig    = "MISSING_CONFIG"
	ErrCodeInvalidIndexURL  = "INVALID_INDEX_URL"
	ErrCodeIndexUnreachable = "INDEX_UNREACHABLE"
	ErrCodeBadTokenHash     = "BAD_TOKEN_HASH"
	ErrCodeDirUnusable      = "DIR_UNUSABLE"
)

// ErrEnvFileMissing returns an error for a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrMissingConfig returns an error for a required env var that is not set.
func ErrMissingConfig(key string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Required configuration %s is not set", key),
		Action:  fmt.Sprintf("Set %s in your .env file", key),
	}
}

// ErrInvalidIndexURL returns an error for a malformed index URL.
func ErrInvalidIndexURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidIndexURL,
		Message: fmt.Sprintf("Invalid SOLR_URL '%s': %s", url, reason),
		Action:  "Set SOLR_URL to the index core endpoint (e.g. http://solr:8983/solr/repo)",
	}
}

// ErrIndexUnreachable returns an error when the metadata index cannot be
// reached.
func ErrIndexUnreachable(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeIndexUnreachable,
		Message: fmt.Sprintf("Cannot connect to index at %s: %s", url, reason),
		Action:  "Check that SOLR_URL is correct and the index is running",
	}
}

// ErrBadTokenHash returns an error for a malformed admin token hash.
func ErrBadTokenHash(reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeBadTokenHash,
		Message: fmt.Sprintf("ADMIN_TOKEN_HASH is not a valid bcrypt hash: %s", reason),
		Action:  "Generate a hash of the admin token with bcrypt cost 12 and set ADMIN_TOKEN_HASH",
	}
}

// ErrDirUnusable returns an error for a required directory that is missing
// or not writable.
func ErrDirUnusable(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeDirUnusable,
		Message: fmt.Sprintf("Directory %s is not usable: %s", path, reason),
		Action:  "Create the directory and make sure the service user can write to it",
	}
}

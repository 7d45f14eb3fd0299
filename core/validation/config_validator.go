package validation

import (
	"os"

	"pdf_backend/core"

	"golang.org/x/crypto/bcrypt"
)

// ValidationResult represents the outcome of one configuration check.
type ValidationResult struct {
	Valid   bool
	Message string
	Error   error
}

// ConfigValidator checks the service configuration before any heavy
// initialization runs. Each check reads the environment directly so the
// suite can run ahead of config loading.
type ConfigValidator struct {
	envPath string
}

// NewConfigValidator creates a ConfigValidator with default settings.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{envPath: ".env"}
}

// WithEnvPath sets a custom path for the .env file.
func (v *ConfigValidator) WithEnvPath(path string) *ConfigValidator {
	v.envPath = path
	return v
}

// CheckEnvFile validates that the .env file exists.
func (v *ConfigValidator) CheckEnvFile() ValidationResult {
	if err := CheckFileExists(v.envPath); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Configuration file not found. Copy example.env to .env and configure the service.",
			Error:   core.ErrEnvFileMissing(v.envPath),
		}
	}
	return ValidationResult{Valid: true, Message: "Environment file found"}
}

// CheckIndexURL validates the SOLR_URL environment variable.
func (v *ConfigValidator) CheckIndexURL() ValidationResult {
	indexURL := core.GetEnvOrDefault("SOLR_URL", "")

	if indexURL == "" {
		return ValidationResult{
			Valid:   false,
			Message: "SOLR_URL required. Set the metadata index core endpoint.",
			Error:   core.ErrMissingConfig("SOLR_URL"),
		}
	}

	if err := ValidateBaseURL(indexURL); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Invalid index URL: " + indexURL,
			Error:   core.ErrInvalidIndexURL(indexURL, err.Error()),
		}
	}

	return ValidationResult{Valid: true, Message: "Index URL valid"}
}

// CheckArtifactRoot validates that the artifact root directory exists and
// is writable. Generated PDFs, text sidecars and temp files live under it.
func (v *ConfigValidator) CheckArtifactRoot() ValidationResult {
	root := core.GetEnvOrDefault("ARTIFACT_ROOT", "")
	if root == "" {
		return ValidationResult{
			Valid:   false,
			Message: "ARTIFACT_ROOT required. Set the directory generated PDFs are written to.",
			Error:   core.ErrMissingConfig("ARTIFACT_ROOT"),
		}
	}

	if err := CheckDirWritable(root); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Artifact root is not usable: " + root,
			Error:   core.ErrDirUnusable(root, err.Error()),
		}
	}

	return ValidationResult{Valid: true, Message: "Artifact root writable"}
}

// CheckImageWebRoot validates that the image store root directory exists.
// Read access is enough; page images are never written by this service.
func (v *ConfigValidator) CheckImageWebRoot() ValidationResult {
	root := core.GetEnvOrDefault("IMAGE_WEB_ROOT", "")
	if root == "" {
		return ValidationResult{
			Valid:   false,
			Message: "IMAGE_WEB_ROOT required. Set the root of the page-image store.",
			Error:   core.ErrMissingConfig("IMAGE_WEB_ROOT"),
		}
	}

	if err := CheckDirExists(root); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "Image store root not found: " + root,
			Error:   core.ErrDirUnusable(root, err.Error()),
		}
	}

	return ValidationResult{Valid: true, Message: "Image store root found"}
}

// CheckAdminTokenHash validates the ADMIN_TOKEN_HASH environment variable
// when it is set. An absent hash disables the privileged endpoints, which
// is a valid deployment.
func (v *ConfigValidator) CheckAdminTokenHash() ValidationResult {
	hash := os.Getenv("ADMIN_TOKEN_HASH")
	if hash == "" {
		return ValidationResult{
			Valid:   true,
			Message: "Not set, privileged endpoints disabled",
		}
	}

	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return ValidationResult{
			Valid:   false,
			Message: "ADMIN_TOKEN_HASH is not a valid bcrypt hash",
			Error:   core.ErrBadTokenHash(err.Error()),
		}
	}

	return ValidationResult{Valid: true, Message: "Admin token hash valid"}
}

// CheckOCRBackendKey reports whether the remote OCR backend key is
// configured. A missing key is not fatal: OCR-enabled requests degrade to
// plain PDFs.
func (v *ConfigValidator) CheckOCRBackendKey() ValidationResult {
	if os.Getenv("OCR_BACKEND_KEY") == "" {
		return ValidationResult{
			Valid:   true,
			Message: "Not set, searchable builds will degrade to plain PDFs",
		}
	}
	return ValidationResult{Valid: true, Message: "OCR backend key present"}
}

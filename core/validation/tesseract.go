package validation

import (
	"os/exec"
)

// TesseractResult represents the result of the local OCR engine check.
type TesseractResult struct {
	Available bool
	Path      string
	Message   string
}

// CheckTesseract probes for the tesseract binary on PATH. Only relevant
// when the service is configured for local text extraction; the suite
// treats absence as a warning, not a failure.
func CheckTesseract() TesseractResult {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		return TesseractResult{
			Available: false,
			Message:   "tesseract not found on PATH, local OCR unavailable",
		}
	}
	return TesseractResult{
		Available: true,
		Path:      path,
		Message:   "tesseract found at " + path,
	}
}

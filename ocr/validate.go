// validate.go implements searchable-PDF result validation and text
// extraction. It uses the ledongthuc/pdf library for PDF parsing.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidResult is returned when the backend result does not parse as a
// PDF with at least one page.
var ErrInvalidResult = errors.New("ocr: backend returned an unusable PDF")

// ValidateSearchablePDF checks that data is a parseable PDF with at least
// one page. A truncated download or an HTML error body fails here instead
// of being cached as an artifact.
func ValidateSearchablePDF(data []byte) error {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if reader.NumPage() < 1 {
		return fmt.Errorf("%w: no pages", ErrInvalidResult)
	}
	return nil
}

// ExtractPlainText extracts the text layer from a searchable PDF, one page
// per paragraph. Pages with no text layer are skipped.
func ExtractPlainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("ocr: failed to parse PDF: %w", err)
	}

	var builder strings.Builder
	for pageIndex := 1; pageIndex <= reader.NumPage(); pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("ocr: failed to extract text from page %d: %w", pageIndex, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	return builder.String(), nil
}

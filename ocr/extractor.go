// extractor.go defines the TextExtractor interface implemented by the
// tesseract and vision-model page-text engines.
package ocr

import (
	"context"
	"errors"
)

// ErrNoImages is returned when text extraction is requested with no pages.
var ErrNoImages = errors.New("ocr: no page images provided")

// TextExtractor extracts plain text from page images.
//
// Implementations:
//   - TesseractExtractor (local.go): local tesseract OCR
//   - VisionExtractor (llm.go): vision-capable chat model
type TextExtractor interface {
	// ExtractText runs OCR over the page images in order and returns the
	// combined text, pages separated by blank lines. Pages that yield no
	// text are skipped.
	ExtractText(ctx context.Context, pages [][]byte, language string) (string, error)
}

// local.go implements the TesseractExtractor molecule that extracts page
// text with a local tesseract installation. It uses the gosseract client
// and composes:
//   - extractor.go: TextExtractor interface
//   - logging.Logger: structured logging
package ocr

import (
	"context"
	"fmt"
	"strings"

	"pdf_backend/logging"

	"github.com/otiai10/gosseract/v2"
	"go.uber.org/zap"
)

// TesseractExtractor extracts page text using local tesseract.
//
// Thread-Safety:
//   - TesseractExtractor is safe for concurrent use; each call creates its
//     own gosseract client
type TesseractExtractor struct {
	clientFactory func() *gosseract.Client
	logger        *logging.Logger
}

// NewTesseractExtractor creates a tesseract-backed text extractor.
func NewTesseractExtractor(logger *logging.Logger) (*TesseractExtractor, error) {
	if logger == nil {
		return nil, ErrNilLogger
	}
	return &TesseractExtractor{
		clientFactory: gosseract.NewClient,
		logger:        logger.Named("tesseract"),
	}, nil
}

// ExtractText implements TextExtractor. A single client instance is reused
// across pages to amortize setup costs.
func (e *TesseractExtractor) ExtractText(ctx context.Context, pages [][]byte, language string) (string, error) {
	if len(pages) == 0 {
		return "", ErrNoImages
	}
	if language == "" {
		language = "eng"
	}
	if err := ValidateLanguage(language); err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}

	client := e.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("ocr: failed to set tesseract language %q: %w", language, err)
	}

	var builder strings.Builder
	for i, page := range pages {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("ocr: %w", ctx.Err())
		default:
		}

		if err := client.SetImageFromBytes(page); err != nil {
			return "", fmt.Errorf("ocr: failed to load page %d image: %w", i+1, err)
		}
		text, err := client.Text()
		if err != nil {
			return "", fmt.Errorf("ocr: tesseract failed on page %d: %w", i+1, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			e.logger.Debug("page yielded no text", zap.Int("page", i+1))
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	e.logger.Info("tesseract extraction complete",
		zap.Int("pages", len(pages)),
		zap.String("language", language),
		zap.Int("text_bytes", builder.Len()))

	return builder.String(), nil
}

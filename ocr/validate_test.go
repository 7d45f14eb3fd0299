package ocr

import (
	"errors"
	"testing"
)

func TestValidateSearchablePDF_ValidDocument(t *testing.T) {
	data := makePDF(t, "page text")
	if err := ValidateSearchablePDF(data); err != nil {
		t.Errorf("ValidateSearchablePDF failed on a valid PDF: %v", err)
	}
}

func TestValidateSearchablePDF_Garbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"html error body", []byte("<html><body>502 Bad Gateway</body></html>")},
		{"truncated header", []byte("%PDF-1.4\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateSearchablePDF(tt.data); !errors.Is(err, ErrInvalidResult) {
				t.Errorf("error = %v, want ErrInvalidResult", err)
			}
		})
	}
}

func TestExtractPlainText(t *testing.T) {
	data := makePDF(t, "extractable content")
	text, err := ExtractPlainText(data)
	if err != nil {
		t.Fatalf("ExtractPlainText failed: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty text from a PDF with a text layer")
	}
}

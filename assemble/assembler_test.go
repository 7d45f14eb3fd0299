package assemble

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"pdf_backend/logging"
	"pdf_backend/metadata"

	"go.uber.org/zap/zapcore"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLoggerWithWriters(zapcore.ErrorLevel, nopSyncer{}, nopSyncer{}, true)
}

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

func testMetadata() *metadata.DocumentMetadata {
	return &metadata.DocumentMetadata{
		ID:           "work1",
		Title:        "A Manuscript",
		ShelfMark:    "IE TCD MS 1",
		DOI:          "10.1000/example",
		DateCreated:  "1450",
		Creators:     []string{"Scribe A"},
		Contributors: []string{"Illuminator B"},
		FolderNumber: "MS1",
	}
}

func testPage(t *testing.T, label string, width, height int) PageImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 225, B: 210, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test page: %v", err)
	}
	return PageImage{Label: label, Data: buf.Bytes(), Width: width, Height: height}
}

// isPDF checks for the PDF header magic.
func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func TestAssemble_ProducesValidPDF(t *testing.T) {
	assembler, err := NewAssembler(testLogger(t), DefaultAssemblerConfig())
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}

	pages := []PageImage{
		testPage(t, "001.jpg", 200, 100),
		testPage(t, "002.jpg", 100, 200),
	}

	data, err := assembler.Assemble(testMetadata(), pages)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	if !isPDF(data) {
		t.Error("output does not start with PDF header")
	}
	if len(data) < 1000 {
		t.Errorf("output suspiciously small: %d bytes", len(data))
	}
}

func TestAssemble_PlaceholderTitleRendered(t *testing.T) {
	assembler, _ := NewAssembler(testLogger(t), DefaultAssemblerConfig())

	md := testMetadata()
	md.Title = metadata.PlaceholderTitle

	data, err := assembler.Assemble(md, []PageImage{testPage(t, "001.jpg", 100, 100)})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !isPDF(data) {
		t.Error("output does not start with PDF header")
	}
}

func TestAssemble_PageCountMatchesImages(t *testing.T) {
	assembler, _ := NewAssembler(testLogger(t), DefaultAssemblerConfig())

	pages := []PageImage{
		testPage(t, "001.jpg", 120, 80),
		testPage(t, "002.jpg", 80, 120),
		testPage(t, "003.jpg", 100, 100),
	}

	data, err := assembler.Assemble(testMetadata(), pages)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	// Title page + one page per image, and no blank leading page.
	// "/Type /Pages" (the page tree node) also matches the "/Type /Page"
	// substring, so subtract it out.
	wantPages := len(pages) + 1
	gotPages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	if gotPages != wantPages {
		t.Errorf("page count = %d, want %d", gotPages, wantPages)
	}
}

func TestAssemble_WithTextAppendix(t *testing.T) {
	assembler, _ := NewAssembler(testLogger(t), DefaultAssemblerConfig())

	plain, err := assembler.Assemble(testMetadata(), []PageImage{testPage(t, "001.jpg", 100, 100)})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	withText, err := assembler.AssembleWithAppendix(testMetadata(),
		[]PageImage{testPage(t, "001.jpg", 100, 100)}, "extracted text body")
	if err != nil {
		t.Fatalf("AssembleWithAppendix failed: %v", err)
	}

	if !isPDF(withText) {
		t.Error("appendix output does not start with PDF header")
	}
	if len(withText) <= len(plain) {
		t.Error("appendix output should be larger than plain output")
	}
}

func TestAssemble_InputValidation(t *testing.T) {
	assembler, _ := NewAssembler(testLogger(t), DefaultAssemblerConfig())

	if _, err := assembler.Assemble(nil, []PageImage{testPage(t, "a", 10, 10)}); !errors.Is(err, ErrNilMetadata) {
		t.Errorf("Assemble(nil metadata) = %v, want ErrNilMetadata", err)
	}
	if _, err := assembler.Assemble(testMetadata(), nil); !errors.Is(err, ErrNoPages) {
		t.Errorf("Assemble(no pages) = %v, want ErrNoPages", err)
	}
}

// Package assemble lays out the document PDF: a bibliographic title page
// followed by one page per preprocessed page image.
package assemble

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"codeberg.org/go-pdf/fpdf"

	"pdf_backend/logging"
	"pdf_backend/metadata"

	"go.uber.org/zap"
)

// Assembly errors.
var (
	ErrNilMetadata = errors.New("assemble: metadata cannot be nil")
	ErrNoPages     = errors.New("assemble: no page images to assemble")
)

// Title page layout constants, in points.
const (
	logoWidth      = 232
	logoHeight     = 62
	titleFontSize  = 14
	bodyFontSize   = 12
	footerFontSize = 8
)

// PageImage is one preprocessed page ready for layout: JPEG bytes plus
// pixel dimensions. Owned by a single build; never shared across builds.
type PageImage struct {
	Label  string
	Data   []byte
	Width  int
	Height int
}

// AssemblerConfig holds configuration for the PDF assembler.
type AssemblerConfig struct {
	// LogoPath is the image drawn at the top of the title page.
	// Skipped when empty or unreadable.
	LogoPath string

	// AttributionLine is the fixed footer rendered centered at the bottom
	// of the title page.
	AttributionLine string
}

// DefaultAssemblerConfig returns sensible default configuration.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		AttributionLine: "Library of Trinity College Dublin, Digital Collections (https://digitalcollections.tcd.ie/)",
	}
}

// Assembler builds the paginated PDF.
//
// Thread-Safety: safe for concurrent use; each Assemble call builds its own
// document.
type Assembler struct {
	config AssemblerConfig
	logger *logging.Logger
}

// NewAssembler creates a new PDF assembler.
func NewAssembler(logger *logging.Logger, config AssemblerConfig) (*Assembler, error) {
	if logger == nil {
		return nil, fmt.Errorf("assemble: logger cannot be nil")
	}
	return &Assembler{
		config: config,
		logger: logger.Named("assemble"),
	}, nil
}

// Assemble renders the title page and one page per image, in the order the
// images are given. Ordering is established by the metadata resolver and is
// never re-sorted here.
func (a *Assembler) Assemble(md *metadata.DocumentMetadata, pages []PageImage) ([]byte, error) {
	return a.AssembleWithAppendix(md, pages, "")
}

// AssembleWithAppendix renders the document and, when textAppendix is
// non-empty, a trailing text-only section holding the extracted OCR text.
func (a *Assembler) AssembleWithAppendix(md *metadata.DocumentMetadata, pages []PageImage, textAppendix string) ([]byte, error) {
	if md == nil {
		return nil, ErrNilMetadata
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	a.addTitlePage(pdf, md)

	for i, page := range pages {
		// The first image lands on the page opened right after the title
		// page; every image gets exactly one fresh page.
		pdf.AddPage()
		a.placeImage(pdf, i, page)
	}

	if textAppendix != "" {
		a.addTextAppendix(pdf, textAppendix)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("assemble: failed to render PDF: %w", err)
	}

	a.logger.Debug("assembled PDF",
		zap.String("document_id", md.ID),
		zap.Int("pages", len(pages)+1),
		zap.Int("size_bytes", buf.Len()))

	return buf.Bytes(), nil
}

// addTitlePage renders the bibliographic cover page.
func (a *Assembler) addTitlePage(pdf *fpdf.Fpdf, md *metadata.DocumentMetadata) {
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	left, top, _, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()

	if a.logoAvailable() {
		pdf.ImageOptions(a.config.LogoPath, left, top, logoWidth, logoHeight, false,
			fpdf.ImageOptions{ReadDpi: false}, 0, "")
		pdf.SetY(top + logoHeight + 22)
	} else {
		pdf.SetY(top)
	}

	pdf.SetFont("Helvetica", "B", titleFontSize)
	pdf.MultiCell(0, titleFontSize+4, tr(md.Title), "", "L", false)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", bodyFontSize)
	a.addField(pdf, tr, "Shelf Mark/Reference Number", []string{md.ShelfMark})
	a.addField(pdf, tr, "DOI", []string{md.DOI})
	a.addField(pdf, tr, "Creator", md.Creators)
	a.addField(pdf, tr, "Contributor", md.Contributors)
	a.addField(pdf, tr, "Date", []string{md.DateCreated})

	// Fixed attribution line centered at the page bottom, in gray.
	pdf.SetFont("Helvetica", "", footerFontSize)
	pdf.SetTextColor(136, 136, 136)
	pdf.SetXY(left, pageH-bottom-15)
	pdf.CellFormat(pageW-2*left, footerFontSize+2, tr(a.config.AttributionLine), "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// addField renders a bold caption followed by one line per value.
func (a *Assembler) addField(pdf *fpdf.Fpdf, tr func(string) string, caption string, values []string) {
	pdf.SetFont("Helvetica", "B", bodyFontSize)
	pdf.MultiCell(0, bodyFontSize+3, caption, "", "L", false)
	pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, v := range values {
		pdf.MultiCell(0, bodyFontSize+3, tr(v), "", "L", false)
	}
	pdf.Ln(10)
}

// placeImage draws one page image according to its orientation:
//
//  1. landscape wider than the available width: fit to width, left-aligned
//  2. portrait taller than the available height: fit to height, centered
//  3. otherwise: fit within both bounds, centered
func (a *Assembler) placeImage(pdf *fpdf.Fpdf, index int, page PageImage) {
	left, top, right, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()
	availW := pageW - left - right
	availH := pageH - top - bottom

	imgW := float64(page.Width)
	imgH := float64(page.Height)
	aspect := imgW / imgH

	var x, y, drawW, drawH float64
	switch {
	case imgW > imgH && imgW > availW:
		drawW = availW
		drawH = availW / aspect
		x = left
		y = top
	case imgH > imgW && imgH > availH:
		drawH = availH
		drawW = availH * aspect
		x = left + (availW-drawW)/2
		y = top
	default:
		scale := availW / imgW
		if availH/imgH < scale {
			scale = availH / imgH
		}
		drawW = imgW * scale
		drawH = imgH * scale
		x = left + (availW-drawW)/2
		y = top + (availH-drawH)/2
	}

	name := fmt.Sprintf("page_%d", index)
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "JPEG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(page.Data))
	pdf.ImageOptions(name, x, y, drawW, drawH, false, opts, 0, "")
}

// addTextAppendix renders the accumulated OCR text on trailing pages.
func (a *Assembler) addTextAppendix(pdf *fpdf.Fpdf, text string) {
	_, _, _, bottom := pdf.GetMargins()
	pdf.SetAutoPageBreak(true, bottom)
	defer pdf.SetAutoPageBreak(false, 0)

	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", bodyFontSize)
	pdf.MultiCell(0, bodyFontSize+3, "Extracted Text", "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 13, tr(text), "", "L", false)
}

func (a *Assembler) logoAvailable() bool {
	if a.config.LogoPath == "" {
		return false
	}
	info, err := os.Stat(a.config.LogoPath)
	return err == nil && !info.IsDir()
}

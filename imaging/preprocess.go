// Package imaging prepares page images for PDF assembly: decoding,
// bounded resizing, and JPEG re-encoding.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Image preprocessing errors.
var (
	ErrEmptyImage    = errors.New("imaging: empty image data")
	ErrInvalidImage  = errors.New("imaging: invalid image data")
	ErrInvalidConfig = errors.New("imaging: invalid preprocessor configuration")
)

// Default preprocessing parameters. The edge bound trades fidelity for
// bounded memory and PDF size.
const (
	// DefaultMaxEdge is the target length of the longer image edge.
	DefaultMaxEdge = 2000

	// DefaultJPEGQuality is the re-encoding quality on a 0-100 scale.
	DefaultJPEGQuality = 70
)

// PreprocessorConfig holds configuration for the image preprocessor.
type PreprocessorConfig struct {
	// MaxEdge is the length the longer image edge is scaled to. Images
	// already within the bound are still re-encoded for uniform quality.
	MaxEdge int

	// JPEGQuality is the JPEG quality factor (1-100).
	JPEGQuality int
}

// DefaultPreprocessorConfig returns sensible default configuration.
func DefaultPreprocessorConfig() PreprocessorConfig {
	return PreprocessorConfig{
		MaxEdge:     DefaultMaxEdge,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// Result holds a preprocessed page image.
type Result struct {
	// Data is the re-encoded JPEG bytes.
	Data []byte

	// Width and Height are the pixel dimensions after resizing.
	Width  int
	Height int
}

// Preprocessor resizes and compresses page images.
//
// Thread-Safety: safe for concurrent use; Process is pure apart from
// allocation and mutates no shared state.
type Preprocessor struct {
	config PreprocessorConfig
}

// NewPreprocessor creates a preprocessor with the given configuration.
func NewPreprocessor(config PreprocessorConfig) (*Preprocessor, error) {
	if config.MaxEdge <= 0 {
		return nil, fmt.Errorf("%w: max edge must be positive, got %d", ErrInvalidConfig, config.MaxEdge)
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return nil, fmt.Errorf("%w: JPEG quality must be 1-100, got %d", ErrInvalidConfig, config.JPEGQuality)
	}
	return &Preprocessor{config: config}, nil
}

// Process decodes raw image bytes (JPEG, PNG, or GIF), scales the image so
// its longer edge equals the configured bound while preserving aspect
// ratio, and re-encodes as JPEG at the configured quality.
func (p *Preprocessor) Process(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	width, height := TargetDimensions(img.Bounds().Dx(), img.Bounds().Dy(), p.config.MaxEdge)

	resized := img
	if width != img.Bounds().Dx() || height != img.Bounds().Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		resized = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: p.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("imaging: failed to encode image: %w", err)
	}

	return &Result{
		Data:   buf.Bytes(),
		Width:  width,
		Height: height,
	}, nil
}

// TargetDimensions computes the scaled dimensions such that the longer edge
// equals maxEdge and the aspect ratio is preserved. Pure function.
func TargetDimensions(width, height, maxEdge int) (int, int) {
	if width > height {
		scaled := int(float64(height) / float64(width) * float64(maxEdge))
		if scaled < 1 {
			scaled = 1
		}
		return maxEdge, scaled
	}

	scaled := int(float64(width) / float64(height) * float64(maxEdge))
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxEdge
}

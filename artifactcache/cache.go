// Package artifactcache stores generated PDF and text artifacts on disk.
//
// cache.go implements the Cache molecule: variant path layout, cached
// reads, deduplicated builds, and atomic writes. It composes:
//   - logging.Logger: structured logging
//   - golang.org/x/sync/singleflight: build deduplication
package artifactcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pdf_backend/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Common errors for artifact cache operations.
var (
	// ErrNilLogger indicates the logger is nil.
	ErrNilLogger = errors.New("artifactcache: logger cannot be nil")

	// ErrEmptyRoot indicates the cache root directory is empty.
	ErrEmptyRoot = errors.New("artifactcache: root directory cannot be empty")

	// ErrUnknownVariant indicates an unrecognized artifact variant.
	ErrUnknownVariant = errors.New("artifactcache: unknown artifact variant")
)

// Variant identifies one stored artifact kind for a document.
type Variant string

const (
	// VariantPlain is the assembled PDF without a text layer.
	VariantPlain Variant = "plain"

	// VariantSearchable is the OCR-processed PDF with a text layer.
	VariantSearchable Variant = "searchable"

	// VariantText is the extracted plain-text sidecar.
	VariantText Variant = "text"
)

// searchableSuffix marks searchable PDFs on disk; existing artifacts from
// earlier deployments carry the same name.
const searchableSuffix = "_OCR_Enabled"

// Cache stores generated artifacts under a fixed directory layout:
//
//	<root>/pdf/<id>.pdf
//	<root>/pdf/<id>_OCR_Enabled.pdf
//	<root>/pdf/text/<id>.txt
//	<root>/pdf/temp/            in-progress writes
//
// Thread-Safety:
//   - Cache is safe for concurrent use
//   - Concurrent GetOrBuild calls for the same (id, variant) share one build
type Cache struct {
	root   string
	logger *logging.Logger
	group  singleflight.Group
}

// NewCache creates a Cache rooted at dir and ensures the layout exists.
func NewCache(dir string, logger *logging.Logger) (*Cache, error) {
	if dir == "" {
		return nil, ErrEmptyRoot
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	cache := &Cache{
		root:   dir,
		logger: logger.Named("artifactcache"),
	}
	for _, sub := range []string{cache.pdfDir(), cache.textDir(), cache.tempDir()} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("artifactcache: failed to create %s: %w", sub, err)
		}
	}
	return cache, nil
}

func (c *Cache) pdfDir() string  { return filepath.Join(c.root, "pdf") }
func (c *Cache) textDir() string { return filepath.Join(c.root, "pdf", "text") }
func (c *Cache) tempDir() string { return filepath.Join(c.root, "pdf", "temp") }

// TempDir returns the scratch directory used for in-flight artifacts.
// Callers may sweep it on shutdown.
func (c *Cache) TempDir() string { return c.tempDir() }

// Path returns the on-disk location for a document's artifact variant.
func (c *Cache) Path(documentID string, variant Variant) (string, error) {
	switch variant {
	case VariantPlain:
		return filepath.Join(c.pdfDir(), documentID+".pdf"), nil
	case VariantSearchable:
		return filepath.Join(c.pdfDir(), documentID+searchableSuffix+".pdf"), nil
	case VariantText:
		return filepath.Join(c.textDir(), documentID+".txt"), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// Exists reports whether the artifact is already cached.
func (c *Cache) Exists(documentID string, variant Variant) bool {
	path, err := c.Path(documentID, variant)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Get reads a cached artifact. The boolean is false when the artifact is
// not cached.
func (c *Cache) Get(documentID string, variant Variant) ([]byte, bool, error) {
	path, err := c.Path(documentID, variant)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("artifactcache: failed to read %s: %w", path, err)
	}
	return data, true, nil
}

// Put stores an artifact. The write goes to the temp directory first and is
// renamed into place, so readers never observe a partial file.
func (c *Cache) Put(documentID string, variant Variant, data []byte) error {
	path, err := c.Path(documentID, variant)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(c.tempDir(), documentID+"-*")
	if err != nil {
		return fmt.Errorf("artifactcache: failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("artifactcache: failed to write artifact: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("artifactcache: failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("artifactcache: failed to move artifact into place: %w", err)
	}

	c.logger.Info("artifact stored",
		zap.String("document_id", documentID),
		zap.String("variant", string(variant)),
		zap.Int("size_bytes", len(data)))
	return nil
}

// GetOrBuild returns the cached artifact, or runs build and caches its
// result. Concurrent calls for the same (id, variant) run build once and
// share the outcome. The boolean reports a cache hit.
//
// build additionally reports whether its bytes may be persisted. A
// degraded result is served (and shared with concurrent waiters) without
// being stored, so the next request rebuilds instead of replaying it.
func (c *Cache) GetOrBuild(ctx context.Context, documentID string, variant Variant, build func(context.Context) ([]byte, bool, error)) ([]byte, bool, error) {
	if data, ok, err := c.Get(documentID, variant); err != nil || ok {
		return data, ok, err
	}

	key := documentID + ":" + string(variant)
	type buildResult struct {
		data []byte
		hit  bool
	}

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// A concurrent builder may have finished between our miss and
		// entering the group.
		if data, ok, err := c.Get(documentID, variant); err != nil {
			return nil, err
		} else if ok {
			return buildResult{data: data, hit: true}, nil
		}

		data, store, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if store {
			if err := c.Put(documentID, variant, data); err != nil {
				return nil, err
			}
		}
		return buildResult{data: data}, nil
	})
	if err != nil {
		return nil, false, err
	}

	built := result.(buildResult)
	if shared {
		c.logger.Debug("build shared between concurrent requests",
			zap.String("document_id", documentID),
			zap.String("variant", string(variant)))
	}
	return built.data, built.hit, nil
}

// Bust removes every cached variant for a document. Missing variants are
// not an error; the first real failure is returned after attempting all.
func (c *Cache) Bust(documentID string) error {
	var firstErr error
	for _, variant := range []Variant{VariantPlain, VariantSearchable, VariantText} {
		path, err := c.Path(documentID, variant)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			if firstErr == nil {
				firstErr = fmt.Errorf("artifactcache: failed to remove %s: %w", path, err)
			}
		}
	}

	if firstErr == nil {
		c.logger.Info("artifacts busted", zap.String("document_id", documentID))
	}
	return firstErr
}

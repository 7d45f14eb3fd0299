// Package imagestore maps image labels to concrete paths in the page-image
// store and fetches their bytes.
//
// resolver.go implements the PathResolver molecule that turns a folder
// number and label list into ordered store paths. It composes:
//   - atoms.go: tier markers and label filtering
//   - logging.Logger: structured logging
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"

	"pdf_backend/logging"

	"go.uber.org/zap"
)

// DefaultExcludedLabels are placeholder/cover image file names the metadata
// system attaches to documents; they are not real pages.
var DefaultExcludedLabels = []string{
	"cover_image.jpg",
	"cover.jpg",
}

// PathResolverConfig holds configuration for the path resolver.
type PathResolverConfig struct {
	// WebRoot is the root of the image store,
	// e.g. "/digicolapp/datastore/web".
	WebRoot string

	// ExcludedLabels are labels to drop before path construction.
	ExcludedLabels []string
}

// DefaultPathResolverConfig returns sensible default configuration.
func DefaultPathResolverConfig(webRoot string) PathResolverConfig {
	return PathResolverConfig{
		WebRoot:        webRoot,
		ExcludedLabels: DefaultExcludedLabels,
	}
}

// PathResolver resolves image labels to store paths.
//
// Thread-Safety: safe for concurrent use; all state is read-only after
// construction.
type PathResolver struct {
	config PathResolverConfig
	logger *logging.Logger

	// dirExists probes the store for a directory. Overridable in tests.
	dirExists func(path string) bool
}

// NewPathResolver creates a new path resolver.
func NewPathResolver(logger *logging.Logger, config PathResolverConfig) (*PathResolver, error) {
	if logger == nil {
		return nil, fmt.Errorf("imagestore: logger cannot be nil")
	}
	if config.WebRoot == "" {
		return nil, fmt.Errorf("imagestore: web root cannot be empty")
	}

	return &PathResolver{
		config:    config,
		logger:    logger.Named("imagestore"),
		dirExists: defaultDirExists,
	}, nil
}

func defaultDirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ResolvePaths maps the ordered label list to concrete store paths.
//
// The quality tier is decided once per document from the first label's
// marker; labels without markers fall back to probing the store for the LO
// directory (LO when present, HI otherwise). The chosen tier applies
// uniformly to every label. Placeholder labels are excluded first; input
// order is preserved.
func (r *PathResolver) ResolvePaths(folderNumber string, labels []string) ([]string, error) {
	if folderNumber == "" {
		return nil, fmt.Errorf("imagestore: folder number cannot be empty")
	}

	filtered := FilterLabels(labels, r.config.ExcludedLabels)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("imagestore: no page images remain for folder %s", folderNumber)
	}

	tier := r.chooseTier(folderNumber, filtered[0])

	r.logger.Debug("resolved image tier",
		zap.String("folder_number", folderNumber),
		zap.String("tier", string(tier)),
		zap.Int("image_count", len(filtered)))

	paths := make([]string, len(filtered))
	for i, label := range filtered {
		paths[i] = filepath.Join(r.config.WebRoot, folderNumber, string(tier), label)
	}
	return paths, nil
}

// chooseTier picks the tier from the first label's marker, else probes the
// store for a LO directory.
func (r *PathResolver) chooseTier(folderNumber, firstLabel string) Tier {
	if tier, ok := TierFromLabel(firstLabel); ok {
		return tier
	}

	loDir := filepath.Join(r.config.WebRoot, folderNumber, string(TierLow))
	if r.dirExists(loDir) {
		return TierLow
	}
	return TierHigh
}

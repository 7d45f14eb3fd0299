package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"pdf_backend/core"
	"pdf_backend/logging"

	"go.uber.org/zap"
)

// CleanupTempArtifacts returns a cleanup function that removes leftover
// files from the artifact temp directory. Interrupted builds leave their
// staging files there; sweeping on shutdown keeps the directory from
// accumulating across restarts.
//
// The returned function always reports nil so a failed sweep never blocks
// shutdown; failures are logged instead.
func CleanupTempArtifacts(logger *logging.Logger, tempDir string) core.ShutdownFunc {
	log := logger.Named("cleanup")
	return func(ctx context.Context) error {
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn("Failed to read temp directory", zap.String("dir", tempDir), zap.Error(err))
			}
			return nil
		}

		removed := 0
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				log.Warn("Temp sweep cancelled", zap.Int("removed", removed))
				return nil
			default:
			}

			if entry.IsDir() {
				continue
			}

			path := filepath.Join(tempDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Warn("Failed to remove temp file", zap.String("file", path), zap.Error(err))
				continue
			}
			removed++
		}

		if removed > 0 {
			log.Info("Removed leftover temp artifacts",
				zap.String("dir", tempDir),
				zap.Int("count", removed),
			)
		}
		return nil
	}
}

package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a retention cleanup run.
type CleanupResult struct {
	// RowsDeleted is the number of build_history rows removed
	RowsDeleted int64
	// Duration is how long the cleanup took
	Duration time.Duration
}

// Cleanup deletes build_history rows older than retentionDays and runs
// VACUUM to reclaim disk space.
func (d *Database) Cleanup(retentionDays int) (CleanupResult, error) {
	return d.CleanupWithContext(context.Background(), retentionDays)
}

// CleanupWithContext deletes rows older than retentionDays, respecting
// context cancellation.
func (d *Database) CleanupWithContext(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("db: retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	cutoff := fmt.Sprintf("-%d days", retentionDays)
	res, err := d.Exec(
		`DELETE FROM build_history WHERE created_at < datetime('now', ?)`, cutoff)
	if err != nil {
		return result, fmt.Errorf("db: retention delete failed: %w", err)
	}
	result.RowsDeleted, _ = res.RowsAffected()

	if err := ctx.Err(); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	// VACUUM cannot run inside a transaction.
	if _, err := d.Exec("VACUUM"); err != nil {
		return result, fmt.Errorf("db: vacuum failed: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

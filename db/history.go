package db

import (
	"context"
	"fmt"
	"time"
)

// Build statuses recorded in build_history.
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded" // PDF built but OCR failed
	StatusError    = "error"
)

// BuildRecord is one row of build_history: a single PDF generation attempt.
type BuildRecord struct {
	ID            int64     // Auto-incremented primary key
	CorrelationID string    // Request correlation ID for log tracing
	DocumentID    string    // Repository document identifier
	Variant       string    // Artifact variant: "plain", "searchable", "text"
	OCREngine     string    // Backend engine that produced the result, if any
	OCRLanguage   string    // OCR language selector, if any
	PageCount     int       // Pages in the assembled PDF
	SizeBytes     int64     // Artifact size
	DurationMS    int       // Build duration in milliseconds
	CacheHit      bool      // Whether the artifact was served from cache
	Status        string    // "success", "degraded", "error"
	ErrorMessage  string    // Failure detail when status is not success
	CreatedAt     time.Time // When the row was recorded
}

// Repository provides typed access to build_history. When an AsyncWriter
// is configured, inserts are queued; a full queue falls back to a
// synchronous write.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter may be nil, making all
// writes synchronous.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{db: db, asyncWriter: asyncWriter}
}

type asyncInsertOp struct {
	query string
	args  []interface{}
}

// HandleAsyncWrite is the WriteHandler for this repository's queued
// inserts; pass it to the AsyncWriter backing this Repository.
func (r *Repository) HandleAsyncWrite(op WriteOperation) error {
	insert, ok := op.Data.(asyncInsertOp)
	if !ok {
		return fmt.Errorf("db: unexpected async payload %T", op.Data)
	}
	_, err := r.db.Exec(insert.query, insert.args...)
	return err
}

// InsertBuild records one build attempt. Returns the row ID, or 0 when the
// write was queued asynchronously.
func (r *Repository) InsertBuild(ctx context.Context, record BuildRecord) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("db: database connection is nil")
	}

	query := `
		INSERT INTO build_history (
			correlation_id, document_id, variant, ocr_engine, ocr_language,
			page_count, size_bytes, duration_ms, cache_hit, status, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args := []interface{}{
		record.CorrelationID,
		record.DocumentID,
		record.Variant,
		record.OCREngine,
		record.OCRLanguage,
		record.PageCount,
		record.SizeBytes,
		record.DurationMS,
		boolToInt(record.CacheHit),
		record.Status,
		record.ErrorMessage,
	}

	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(asyncInsertOp{query: query, args: args}) {
			return 0, nil
		}
		// Queue full, fall through to a synchronous write.
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("db: failed to insert build history: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("db: failed to get last insert id: %w", err)
	}
	return id, nil
}

const buildColumns = `
	id, correlation_id, document_id, variant,
	COALESCE(ocr_engine, ''), COALESCE(ocr_language, ''),
	page_count, size_bytes, duration_ms, cache_hit,
	status, COALESCE(error_message, ''), created_at`

// QueryRecentBuilds returns the most recent build records, newest first.
func (r *Repository) QueryRecentBuilds(ctx context.Context, limit int) ([]BuildRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("db: database connection is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT` + buildColumns + `
		FROM build_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("db: failed to query build history: %w", err)
	}
	defer rows.Close()

	return scanBuildRecords(rows)
}

// QueryBuildsByDocument returns all build records for one document,
// newest first.
func (r *Repository) QueryBuildsByDocument(ctx context.Context, documentID string) ([]BuildRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("db: database connection is nil")
	}

	query := `SELECT` + buildColumns + `
		FROM build_history
		WHERE document_id = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db: failed to query build history: %w", err)
	}
	defer rows.Close()

	return scanBuildRecords(rows)
}

// CountBuilds returns the total number of recorded builds; used by the
// health endpoint.
func (r *Repository) CountBuilds(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("db: database connection is nil")
	}

	var count int64
	rows, err := r.db.Query(`SELECT COUNT(*) FROM build_history`)
	if err != nil {
		return 0, fmt.Errorf("db: failed to count build history: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("db: failed to scan build count: %w", err)
		}
	}
	return count, rows.Err()
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanBuildRecords(rows rowScanner) ([]BuildRecord, error) {
	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var cacheHit int
		var createdAt string

		err := rows.Scan(
			&rec.ID,
			&rec.CorrelationID,
			&rec.DocumentID,
			&rec.Variant,
			&rec.OCREngine,
			&rec.OCRLanguage,
			&rec.PageCount,
			&rec.SizeBytes,
			&rec.DurationMS,
			&cacheHit,
			&rec.Status,
			&rec.ErrorMessage,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("db: failed to scan build history row: %w", err)
		}

		rec.CacheHit = cacheHit != 0
		rec.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: error iterating build history rows: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

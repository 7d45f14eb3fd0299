package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// setupTestRepository opens a throwaway database migrated with the real
// migration files in db/migrations.
func setupTestRepository(t *testing.T) (*Repository, *Database) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := NewDatabaseWithConfig(DatabaseConfig{
		Path:           dbPath,
		MigrationsPath: "file://migrations",
	})
	if err != nil {
		t.Fatalf("NewDatabaseWithConfig failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	return NewRepository(database, nil), database
}

func TestInsertBuild_AndQueryByDocument(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()

	record := BuildRecord{
		CorrelationID: "corr-001",
		DocumentID:    "work1",
		Variant:       "searchable",
		OCREngine:     "2",
		OCRLanguage:   "eng",
		PageCount:     12,
		SizeBytes:     204800,
		DurationMS:    5300,
		CacheHit:      false,
		Status:        StatusSuccess,
	}

	id, err := repo.InsertBuild(ctx, record)
	if err != nil {
		t.Fatalf("InsertBuild failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("InsertBuild returned id = %d, want > 0", id)
	}

	records, err := repo.QueryBuildsByDocument(ctx, "work1")
	if err != nil {
		t.Fatalf("QueryBuildsByDocument failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	got := records[0]
	if got.DocumentID != "work1" || got.Variant != "searchable" ||
		got.OCREngine != "2" || got.PageCount != 12 || got.Status != StatusSuccess {
		t.Errorf("stored record does not round-trip: %+v", got)
	}
	if got.CacheHit {
		t.Error("CacheHit = true, want false")
	}
}

func TestQueryRecentBuilds_OrderAndLimit(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()

	for _, doc := range []string{"a1", "b2", "c3"} {
		if _, err := repo.InsertBuild(ctx, BuildRecord{
			CorrelationID: "corr-" + doc,
			DocumentID:    doc,
			Variant:       "plain",
			Status:        StatusSuccess,
		}); err != nil {
			t.Fatalf("InsertBuild(%s) failed: %v", doc, err)
		}
	}

	records, err := repo.QueryRecentBuilds(ctx, 2)
	if err != nil {
		t.Fatalf("QueryRecentBuilds failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Newest first: rows share one timestamp second, so id breaks the tie.
	if records[0].DocumentID != "c3" || records[1].DocumentID != "b2" {
		t.Errorf("order = [%s %s], want [c3 b2]", records[0].DocumentID, records[1].DocumentID)
	}
}

func TestInsertBuild_DegradedStatus(t *testing.T) {
	repo, _ := setupTestRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertBuild(ctx, BuildRecord{
		CorrelationID: "corr-degraded",
		DocumentID:    "work1",
		Variant:       "plain",
		Status:        StatusDegraded,
		ErrorMessage:  "all OCR attempts failed",
	}); err != nil {
		t.Fatalf("InsertBuild failed: %v", err)
	}

	records, err := repo.QueryBuildsByDocument(ctx, "work1")
	if err != nil {
		t.Fatalf("QueryBuildsByDocument failed: %v", err)
	}
	if records[0].Status != StatusDegraded || records[0].ErrorMessage == "" {
		t.Errorf("degraded record = %+v", records[0])
	}
}

func TestInsertBuild_AsyncWriter(t *testing.T) {
	repo, database := setupTestRepository(t)
	ctx := context.Background()

	writer := NewAsyncWriter(repo.HandleAsyncWrite)
	writer.Start()
	repo.asyncWriter = writer

	id, err := repo.InsertBuild(ctx, BuildRecord{
		CorrelationID: "corr-async",
		DocumentID:    "work1",
		Variant:       "plain",
		Status:        StatusSuccess,
	})
	if err != nil {
		t.Fatalf("InsertBuild failed: %v", err)
	}
	if id != 0 {
		t.Errorf("async insert returned id = %d, want 0", id)
	}

	// Drain the queue, then the row must be visible.
	writer.Stop()

	count, err := NewRepository(database, nil).CountBuilds(ctx)
	if err != nil {
		t.Fatalf("CountBuilds failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountBuilds = %d, want 1", count)
	}
}

func TestCleanup_RemovesOldRows(t *testing.T) {
	repo, database := setupTestRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertBuild(ctx, BuildRecord{
		CorrelationID: "corr-old",
		DocumentID:    "work1",
		Variant:       "plain",
		Status:        StatusSuccess,
	}); err != nil {
		t.Fatalf("InsertBuild failed: %v", err)
	}
	// Age the row past the retention window.
	if _, err := database.Exec(
		`UPDATE build_history SET created_at = datetime('now', '-40 days')`); err != nil {
		t.Fatalf("aging row failed: %v", err)
	}

	result, err := database.CleanupWithContext(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupWithContext failed: %v", err)
	}
	if result.RowsDeleted != 1 {
		t.Errorf("RowsDeleted = %d, want 1", result.RowsDeleted)
	}

	count, _ := repo.CountBuilds(ctx)
	if count != 0 {
		t.Errorf("CountBuilds after cleanup = %d, want 0", count)
	}
}

func TestCleanup_KeepsRecentRows(t *testing.T) {
	repo, database := setupTestRepository(t)
	ctx := context.Background()

	if _, err := repo.InsertBuild(ctx, BuildRecord{
		CorrelationID: "corr-recent",
		DocumentID:    "work1",
		Variant:       "plain",
		Status:        StatusSuccess,
	}); err != nil {
		t.Fatalf("InsertBuild failed: %v", err)
	}

	result, err := database.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.RowsDeleted != 0 {
		t.Errorf("RowsDeleted = %d, want 0", result.RowsDeleted)
	}
	if result.Duration <= 0 {
		t.Error("Duration not recorded")
	}
}

func TestAsyncWriter_NonBlockingWhenFull(t *testing.T) {
	block := make(chan struct{})
	writer := NewAsyncWriterWithConfig(func(op WriteOperation) error {
		<-block
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 1, DrainTimeout: time.Second})
	writer.Start()
	defer func() {
		close(block)
		writer.Stop()
	}()

	// Fill the single-slot buffer plus the in-flight op, then the next
	// write must be rejected instead of blocking.
	writer.Write("op1")
	writer.Write("op2")

	accepted := true
	for i := 0; i < 3 && accepted; i++ {
		accepted = writer.Write("overflow")
	}
	if accepted {
		t.Error("writes kept being accepted with a blocked handler and full buffer")
	}
}

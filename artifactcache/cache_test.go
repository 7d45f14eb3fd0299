package artifactcache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"pdf_backend/logging"

	"go.uber.org/zap/zapcore"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLoggerWithWriters(zapcore.ErrorLevel, nopSyncer{}, nopSyncer{}, true)
}

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(t.TempDir(), testLogger(t))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	return cache
}

func TestCache_PathLayout(t *testing.T) {
	root := t.TempDir()
	cache, err := NewCache(root, testLogger(t))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	tests := []struct {
		variant Variant
		want    string
	}{
		{VariantPlain, filepath.Join(root, "pdf", "work1.pdf")},
		{VariantSearchable, filepath.Join(root, "pdf", "work1_OCR_Enabled.pdf")},
		{VariantText, filepath.Join(root, "pdf", "text", "work1.txt")},
	}
	for _, tt := range tests {
		path, err := cache.Path("work1", tt.variant)
		if err != nil {
			t.Fatalf("Path(%s) failed: %v", tt.variant, err)
		}
		if path != tt.want {
			t.Errorf("Path(%s) = %q, want %q", tt.variant, path, tt.want)
		}
	}

	if _, err := cache.Path("work1", Variant("bogus")); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("unknown variant error = %v, want ErrUnknownVariant", err)
	}
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	payload := []byte("%PDF-1.4 test artifact")

	if cache.Exists("work1", VariantPlain) {
		t.Error("Exists before Put = true, want false")
	}
	if err := cache.Put("work1", VariantPlain, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !cache.Exists("work1", VariantPlain) {
		t.Error("Exists after Put = false, want true")
	}

	data, ok, err := cache.Get("work1", VariantPlain)
	if err != nil || !ok {
		t.Fatalf("Get = (ok=%v, err=%v), want hit", ok, err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("Get returned different bytes than Put stored")
	}
}

func TestCache_PutLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	cache, _ := NewCache(root, testLogger(t))
	if err := cache.Put("work1", VariantPlain, []byte("data")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "pdf", "temp"))
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir has %d leftover entries, want 0", len(entries))
	}
}

func TestGetOrBuild_BuildsOnceThenHitsCache(t *testing.T) {
	cache := newTestCache(t)
	var builds atomic.Int32
	build := func(context.Context) ([]byte, bool, error) {
		builds.Add(1)
		return []byte("built artifact"), true, nil
	}

	data, hit, err := cache.GetOrBuild(context.Background(), "work1", VariantPlain, build)
	if err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}
	if hit {
		t.Error("first call reported a cache hit")
	}
	if string(data) != "built artifact" {
		t.Errorf("data = %q", data)
	}

	_, hit, err = cache.GetOrBuild(context.Background(), "work1", VariantPlain, build)
	if err != nil {
		t.Fatalf("second GetOrBuild failed: %v", err)
	}
	if !hit {
		t.Error("second call missed the cache")
	}
	if builds.Load() != 1 {
		t.Errorf("build ran %d times, want 1", builds.Load())
	}
}

func TestGetOrBuild_ConcurrentRequestsShareOneBuild(t *testing.T) {
	cache := newTestCache(t)
	var builds atomic.Int32
	release := make(chan struct{})
	build := func(context.Context) ([]byte, bool, error) {
		builds.Add(1)
		<-release
		return []byte("shared artifact"), true, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = cache.GetOrBuild(context.Background(), "work1", VariantPlain, build)
		}(i)
	}

	// Give the goroutines time to pile onto the same key, then release
	// the single build.
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if string(results[i]) != "shared artifact" {
			t.Errorf("caller %d got %q", i, results[i])
		}
	}
	if got := builds.Load(); got > 2 {
		t.Errorf("build ran %d times for concurrent callers of one key", got)
	}
}

func TestGetOrBuild_BuildErrorNotCached(t *testing.T) {
	cache := newTestCache(t)
	buildErr := errors.New("upstream unavailable")

	_, _, err := cache.GetOrBuild(context.Background(), "work1", VariantPlain, func(context.Context) ([]byte, bool, error) {
		return nil, false, buildErr
	})
	if !errors.Is(err, buildErr) {
		t.Fatalf("error = %v, want build error", err)
	}
	if cache.Exists("work1", VariantPlain) {
		t.Error("failed build left an artifact behind")
	}

	// A later build succeeds.
	data, _, err := cache.GetOrBuild(context.Background(), "work1", VariantPlain, func(context.Context) ([]byte, bool, error) {
		return []byte("recovered"), true, nil
	})
	if err != nil || string(data) != "recovered" {
		t.Errorf("retry = (%q, %v), want recovered artifact", data, err)
	}
}

func TestGetOrBuild_UnstoredResultRebuiltNextTime(t *testing.T) {
	cache := newTestCache(t)
	var builds atomic.Int32

	// First build serves bytes but declines persistence.
	data, hit, err := cache.GetOrBuild(context.Background(), "work1", VariantSearchable, func(context.Context) ([]byte, bool, error) {
		builds.Add(1)
		return []byte("fallback"), false, nil
	})
	if err != nil {
		t.Fatalf("GetOrBuild failed: %v", err)
	}
	if hit || string(data) != "fallback" {
		t.Errorf("first call = (%q, hit=%v), want served fallback miss", data, hit)
	}
	if cache.Exists("work1", VariantSearchable) {
		t.Error("unstored build left an artifact behind")
	}

	// The next request rebuilds instead of replaying the fallback.
	data, hit, err = cache.GetOrBuild(context.Background(), "work1", VariantSearchable, func(context.Context) ([]byte, bool, error) {
		builds.Add(1)
		return []byte("full artifact"), true, nil
	})
	if err != nil {
		t.Fatalf("second GetOrBuild failed: %v", err)
	}
	if hit || string(data) != "full artifact" {
		t.Errorf("second call = (%q, hit=%v), want rebuilt artifact", data, hit)
	}
	if builds.Load() != 2 {
		t.Errorf("build ran %d times, want 2", builds.Load())
	}
	if !cache.Exists("work1", VariantSearchable) {
		t.Error("stored build missing from cache")
	}
}

func TestBust_RemovesAllVariants(t *testing.T) {
	cache := newTestCache(t)
	cache.Put("work1", VariantPlain, []byte("plain"))
	cache.Put("work1", VariantSearchable, []byte("searchable"))
	cache.Put("work1", VariantText, []byte("text"))
	cache.Put("other1", VariantPlain, []byte("other"))

	if err := cache.Bust("work1"); err != nil {
		t.Fatalf("Bust failed: %v", err)
	}

	for _, variant := range []Variant{VariantPlain, VariantSearchable, VariantText} {
		if cache.Exists("work1", variant) {
			t.Errorf("variant %s still exists after Bust", variant)
		}
	}
	if !cache.Exists("other1", VariantPlain) {
		t.Error("Bust removed another document's artifact")
	}

	// Busting an uncached document is not an error.
	if err := cache.Bust("missing1"); err != nil {
		t.Errorf("Bust of uncached document = %v, want nil", err)
	}
}

func TestNewCache_Validation(t *testing.T) {
	if _, err := NewCache("", testLogger(t)); !errors.Is(err, ErrEmptyRoot) {
		t.Errorf("empty root: error = %v, want ErrEmptyRoot", err)
	}
	if _, err := NewCache(t.TempDir(), nil); !errors.Is(err, ErrNilLogger) {
		t.Errorf("nil logger: error = %v, want ErrNilLogger", err)
	}
}

package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"pdf_backend/artifactcache"
	"pdf_backend/assemble"
	"pdf_backend/imagestore"
	"pdf_backend/imaging"
	"pdf_backend/logging"
	"pdf_backend/metadata"
	"pdf_backend/ocr"

	"go.uber.org/zap/zapcore"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLoggerWithWriters(zapcore.ErrorLevel, nopSyncer{}, nopSyncer{}, true)
}

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

// stubIndex serves canned index documents and counts lookups.
type stubIndex struct {
	docs    map[string]*metadata.IndexDocument
	lookups atomic.Int32
}

func (s *stubIndex) Lookup(_ context.Context, id string) (*metadata.IndexDocument, error) {
	s.lookups.Add(1)
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrNotFound, id)
	}
	return doc, nil
}

// stubSearchabler records MakeSearchable calls and returns canned output.
type stubSearchabler struct {
	calls   atomic.Int32
	lastReq ocr.Request
	output  []byte
	err     error
}

func (s *stubSearchabler) MakeSearchable(_ context.Context, _ []byte, req ocr.Request) ([]byte, error) {
	s.calls.Add(1)
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.output, nil
}

// stubExtractor returns canned page text.
type stubExtractor struct {
	calls atomic.Int32
	text  string
	err   error
}

func (s *stubExtractor) ExtractText(_ context.Context, _ [][]byte, _ string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

// writeJPEG writes a small real JPEG the preprocessor can decode.
func writeJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()
	if err := jpeg.Encode(file, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

// harness wires a Builder over real components with a stub index and
// filesystem-backed image store.
type harness struct {
	builder     *Builder
	index       *stubIndex
	searchabler *stubSearchabler
	extractor   *stubExtractor
	cache       *artifactcache.Cache
}

const (
	testDocID  = "doc001abc"
	testFolder = "MS1234"
)

func newHarness(t *testing.T, config Config) *harness {
	t.Helper()
	logger := testLogger(t)

	webRoot := t.TempDir()
	for _, label := range []string{"MS1234_001_HI.jpg", "MS1234_002_HI.jpg"} {
		writeJPEG(t, filepath.Join(webRoot, testFolder, "HI", label))
	}

	index := &stubIndex{docs: map[string]*metadata.IndexDocument{
		testDocID: {
			ID:            testDocID,
			Titles:        []string{"The Book of Test"},
			FolderNumbers: []string{testFolder},
			FileSetIDs:    []string{"fs1", "fs2"},
		},
		"fs1": {ID: "fs1", Label: "MS1234_002_HI.jpg"},
		"fs2": {ID: "fs2", Label: "MS1234_001_HI.jpg"},
	}}

	resolver, err := metadata.NewResolver(index, logger, metadata.DefaultResolverConfig())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	paths, err := imagestore.NewPathResolver(logger, imagestore.DefaultPathResolverConfig(webRoot))
	if err != nil {
		t.Fatalf("NewPathResolver: %v", err)
	}
	preprocessor, err := imaging.NewPreprocessor(imaging.PreprocessorConfig{MaxEdge: 50, JPEGQuality: 70})
	if err != nil {
		t.Fatalf("NewPreprocessor: %v", err)
	}
	assembler, err := assemble.NewAssembler(logger, assemble.DefaultAssemblerConfig())
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	cache, err := artifactcache.NewCache(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	searchabler := &stubSearchabler{output: []byte("%PDF-1.4 searchable stub")}
	extractor := &stubExtractor{text: "extracted page text"}

	b, err := New(Deps{
		Resolver:     resolver,
		Paths:        paths,
		Store:        imagestore.NewStore(imagestore.DefaultStoreConfig()),
		Preprocessor: preprocessor,
		Assembler:    assembler,
		Cache:        cache,
		Searchabler:  searchabler,
		Extractor:    extractor,
		Logger:       logger,
	}, config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &harness{
		builder:     b,
		index:       index,
		searchabler: searchabler,
		extractor:   extractor,
		cache:       cache,
	}
}

func TestBuild_PlainPDF(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	result, err := h.builder.Build(context.Background(), testDocID, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Errorf("expected PDF output, got prefix %q", result.Data[:8])
	}
	if result.Variant != artifactcache.VariantPlain {
		t.Errorf("expected plain variant, got %q", result.Variant)
	}
	if result.FileName != testDocID+".pdf" {
		t.Errorf("unexpected file name %q", result.FileName)
	}
	if result.CacheHit {
		t.Error("first build should not be a cache hit")
	}
	if result.CorrelationID == "" {
		t.Error("expected a correlation id")
	}
	if h.searchabler.calls.Load() != 0 {
		t.Error("OCR backend should not be called without OCR option")
	}
}

func TestBuild_SecondCallServedFromCache(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	first, err := h.builder.Build(ctx, testDocID, Options{})
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	lookupsAfterFirst := h.index.lookups.Load()

	second, err := h.builder.Build(ctx, testDocID, Options{})
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if !second.CacheHit {
		t.Error("second build should hit the cache")
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Error("cached artifact differs from original")
	}
	if got := h.index.lookups.Load(); got != lookupsAfterFirst {
		t.Errorf("cache hit performed %d extra index lookups", got-lookupsAfterFirst)
	}
}

func TestBuild_PrivilegedBustsCache(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	if _, err := h.builder.Build(ctx, testDocID, Options{}); err != nil {
		t.Fatalf("seed Build: %v", err)
	}
	lookupsAfterSeed := h.index.lookups.Load()

	result, err := h.builder.Build(ctx, testDocID, Options{Privileged: true})
	if err != nil {
		t.Fatalf("privileged Build: %v", err)
	}
	if result.CacheHit {
		t.Error("privileged build must not be served from cache")
	}
	if got := h.index.lookups.Load(); got == lookupsAfterSeed {
		t.Error("privileged build should have re-resolved the document")
	}
}

func TestBuild_BackendOCRSuccess(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	result, err := h.builder.Build(context.Background(), testDocID, Options{OCREnabled: true, Language: "fra"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.OCRDegraded {
		t.Error("successful OCR should not be degraded")
	}
	if !bytes.Equal(result.Data, h.searchabler.output) {
		t.Error("expected the searchable PDF from the backend")
	}
	if result.FileName != testDocID+"_OCR_Enabled.pdf" {
		t.Errorf("unexpected file name %q", result.FileName)
	}
	if result.Variant != artifactcache.VariantSearchable {
		t.Errorf("expected searchable variant, got %q", result.Variant)
	}
	if h.searchabler.lastReq.Language != "fra" {
		t.Errorf("language not forwarded, got %q", h.searchabler.lastReq.Language)
	}
}

func TestBuild_BackendOCRFailureDegrades(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.searchabler.err = fmt.Errorf("%w: all engines exhausted", ocr.ErrOCRFailed)

	result, err := h.builder.Build(context.Background(), testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("degraded build must not fail: %v", err)
	}
	if !result.OCRDegraded {
		t.Error("expected degraded result")
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Error("degraded result should still be the plain assembled PDF")
	}
}

func TestBuild_DegradedResultNotCachedAsSearchable(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()
	h.searchabler.err = fmt.Errorf("%w: all engines exhausted", ocr.ErrOCRFailed)

	first, err := h.builder.Build(ctx, testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("degraded Build: %v", err)
	}
	if !first.OCRDegraded || first.CacheHit {
		t.Fatalf("first build = (degraded=%v, hit=%v), want degraded miss", first.OCRDegraded, first.CacheHit)
	}
	if h.cache.Exists(testDocID, artifactcache.VariantSearchable) {
		t.Error("degraded build stored under the searchable variant")
	}
	if !h.cache.Exists(testDocID, artifactcache.VariantPlain) {
		t.Error("degraded build should keep its plain PDF for plain requests")
	}

	// Backend recovers; the next OCR request must retry instead of
	// replaying the fallback from cache.
	h.searchabler.err = nil
	callsBeforeRetry := h.searchabler.calls.Load()

	second, err := h.builder.Build(ctx, testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("recovered Build: %v", err)
	}
	if h.searchabler.calls.Load() == callsBeforeRetry {
		t.Error("recovered backend was never consulted")
	}
	if second.OCRDegraded || second.CacheHit {
		t.Errorf("recovered build = (degraded=%v, hit=%v), want fresh searchable result", second.OCRDegraded, second.CacheHit)
	}
	if !bytes.Equal(second.Data, h.searchabler.output) {
		t.Error("recovered build did not serve the searchable PDF")
	}

	third, err := h.builder.Build(ctx, testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if !third.CacheHit {
		t.Error("searchable artifact should now be served from cache")
	}
}

func TestBuild_EngineOverridePrependsAttemptOrder(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.builder.Build(context.Background(), testDocID, Options{OCREnabled: true, Engine: "1"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []string{"1", "2"}
	got := h.searchabler.lastReq.Engines
	if len(got) != len(want) {
		t.Fatalf("attempt order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt order = %v, want %v", got, want)
		}
	}
}

func TestBuild_ExtractModeWritesSidecar(t *testing.T) {
	config := DefaultConfig()
	config.OCRMode = OCRModeExtract
	h := newHarness(t, config)

	result, err := h.builder.Build(context.Background(), testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.OCRDegraded {
		t.Error("successful extraction should not be degraded")
	}
	if h.extractor.calls.Load() != 1 {
		t.Errorf("extractor called %d times, want 1", h.extractor.calls.Load())
	}
	if h.searchabler.calls.Load() != 0 {
		t.Error("backend must not be called in extract mode")
	}

	text, ok, err := h.builder.Text(testDocID)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !ok {
		t.Fatal("expected a text sidecar")
	}
	if string(text) != h.extractor.text {
		t.Errorf("sidecar = %q, want %q", text, h.extractor.text)
	}
}

func TestBuild_ExtractFailureDegrades(t *testing.T) {
	config := DefaultConfig()
	config.OCRMode = OCRModeExtract
	h := newHarness(t, config)
	h.extractor.err = errors.New("tesseract unavailable")

	result, err := h.builder.Build(context.Background(), testDocID, Options{OCREnabled: true})
	if err != nil {
		t.Fatalf("degraded build must not fail: %v", err)
	}
	if !result.OCRDegraded {
		t.Error("expected degraded result")
	}
	if !bytes.HasPrefix(result.Data, []byte("%PDF")) {
		t.Error("degraded result should still be a plain PDF")
	}
	if _, ok, _ := h.builder.Text(testDocID); ok {
		t.Error("failed extraction must not leave a sidecar")
	}
}

func TestBuild_InvalidDocumentID(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.builder.Build(context.Background(), "../../etc/passwd", Options{})
	if err == nil {
		t.Fatal("expected an error for an invalid id")
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	if buildErr.Stage != StageResolve {
		t.Errorf("stage = %q, want %q", buildErr.Stage, StageResolve)
	}
	if h.index.lookups.Load() != 0 {
		t.Error("invalid id must not reach the index")
	}
}

func TestBuild_UnknownDocument(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.builder.Build(context.Background(), "nosuchdoc1", Options{})
	if !errors.Is(err, metadata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExists(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	ctx := context.Background()

	if h.builder.Exists(testDocID) {
		t.Error("document should not exist before any build")
	}
	if h.builder.Exists("../bad") {
		t.Error("invalid ids never exist")
	}

	if _, err := h.builder.Build(ctx, testDocID, Options{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !h.builder.Exists(testDocID) {
		t.Error("document should exist after a build")
	}
}

func TestNew_Validation(t *testing.T) {
	logger := testLogger(t)
	if _, err := New(Deps{Logger: logger}, DefaultConfig()); !errors.Is(err, ErrNilDependency) {
		t.Errorf("expected ErrNilDependency for missing components, got %v", err)
	}
	if _, err := New(Deps{}, DefaultConfig()); !errors.Is(err, ErrNilDependency) {
		t.Errorf("expected ErrNilDependency for empty deps, got %v", err)
	}
}

// builder.go implements the Builder organism composing:
//   - metadata.Resolver: document metadata and ordered page labels
//   - imagestore.PathResolver + Store: page image locations and bytes
//   - imaging.Preprocessor: decode and resize
//   - assemble.Assembler: title page + image pages
//   - ocr: searchable-PDF production or page-text extraction
//   - artifactcache.Cache: deduplicated get-or-build and storage
//   - db.Repository: build history rows
package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"pdf_backend/artifactcache"
	"pdf_backend/assemble"
	"pdf_backend/db"
	"pdf_backend/imagestore"
	"pdf_backend/imaging"
	"pdf_backend/logging"
	"pdf_backend/metadata"
	"pdf_backend/metrics"
	"pdf_backend/ocr"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OCRMode selects how OCR-enabled builds produce their text layer.
type OCRMode string

const (
	// OCRModeBackend sends the assembled PDF to the remote backend and
	// replaces it with the searchable result.
	OCRModeBackend OCRMode = "backend"

	// OCRModeExtract runs the configured page-text extractor (tesseract
	// or vision model) over the page images and emits the text as a
	// trailing PDF page and/or a sidecar text artifact.
	OCRModeExtract OCRMode = "extract"
)

// Options are the per-request build options.
type Options struct {
	// OCREnabled requests a text-searchable artifact.
	OCREnabled bool

	// Language is the OCR language selector; empty uses the default.
	Language string

	// Engine is the primary backend engine selector; empty uses the
	// configured attempt order.
	Engine string

	// Source overrides the backend submission mode.
	Source ocr.SourceMode

	// Privileged callers bust the cache and force a rebuild.
	Privileged bool
}

// Result is a completed build.
type Result struct {
	// Data is the final PDF.
	Data []byte

	// Variant is the artifact variant that was served.
	Variant artifactcache.Variant

	// FileName is the download name for the artifact.
	FileName string

	// CacheHit reports whether the artifact came from the cache.
	CacheHit bool

	// OCRDegraded reports that OCR was requested but failed, so Data is
	// the non-searchable PDF.
	OCRDegraded bool

	// CorrelationID ties the response to log lines and the history row.
	CorrelationID string
}

// Searchabler produces a searchable PDF from an assembled one.
// Implemented by *ocr.Orchestrator.
type Searchabler interface {
	MakeSearchable(ctx context.Context, pdfData []byte, req ocr.Request) ([]byte, error)
}

// Config holds configuration for the Builder.
type Config struct {
	// FetchConcurrency bounds parallel image fetch+preprocess workers.
	FetchConcurrency int

	// OCRMode selects the OCR strategy for OCR-enabled builds.
	OCRMode OCRMode

	// EmbedTextPage appends the extracted text as a trailing PDF page
	// (extract mode only).
	EmbedTextPage bool

	// WriteTextSidecar stores the extracted text as a sibling .txt
	// artifact (extract mode only). Both output modes may be on at once.
	WriteTextSidecar bool

	// DefaultLanguage is used when a request names no OCR language.
	DefaultLanguage string
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		FetchConcurrency: 4,
		OCRMode:          OCRModeBackend,
		EmbedTextPage:    true,
		WriteTextSidecar: true,
		DefaultLanguage:  "eng",
	}
}

// Builder runs document builds end to end. It is safe for concurrent use;
// concurrent builds of one (document, variant) are deduplicated by the
// cache.
type Builder struct {
	resolver     *metadata.Resolver
	paths        *imagestore.PathResolver
	store        *imagestore.Store
	preprocessor *imaging.Preprocessor
	assembler    *assemble.Assembler
	cache        *artifactcache.Cache
	searchabler  Searchabler       // nil disables backend OCR
	extractor    ocr.TextExtractor // nil disables extract-mode OCR
	history      *db.Repository    // nil disables history rows
	metrics      *metrics.Store    // nil disables in-memory stats
	logger       *logging.Logger
	config       Config
}

// Deps collects the Builder's collaborators. Searchabler, Extractor,
// History and Metrics are optional; the rest are required.
type Deps struct {
	Resolver     *metadata.Resolver
	Paths        *imagestore.PathResolver
	Store        *imagestore.Store
	Preprocessor *imaging.Preprocessor
	Assembler    *assemble.Assembler
	Cache        *artifactcache.Cache
	Searchabler  Searchabler
	Extractor    ocr.TextExtractor
	History      *db.Repository
	Metrics      *metrics.Store
	Logger       *logging.Logger
}

// New creates a Builder.
func New(deps Deps, config Config) (*Builder, error) {
	switch {
	case deps.Resolver == nil, deps.Paths == nil, deps.Store == nil,
		deps.Preprocessor == nil, deps.Assembler == nil, deps.Cache == nil:
		return nil, ErrNilDependency
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrNilDependency)
	}
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = DefaultConfig().FetchConcurrency
	}
	if config.OCRMode == "" {
		config.OCRMode = OCRModeBackend
	}
	if config.DefaultLanguage == "" {
		config.DefaultLanguage = DefaultConfig().DefaultLanguage
	}

	return &Builder{
		resolver:     deps.Resolver,
		paths:        deps.Paths,
		store:        deps.Store,
		preprocessor: deps.Preprocessor,
		assembler:    deps.Assembler,
		cache:        deps.Cache,
		searchabler:  deps.Searchabler,
		extractor:    deps.Extractor,
		history:      deps.History,
		metrics:      deps.Metrics,
		logger:       deps.Logger.Named("builder"),
		config:       config,
	}, nil
}

// Build produces the artifact for a document. Repeat unprivileged calls
// serve the cached artifact; privileged calls bust every variant first
// and rebuild.
func (b *Builder) Build(ctx context.Context, documentID string, opts Options) (*Result, error) {
	start := time.Now()

	if err := metadata.ValidateDocumentID(documentID); err != nil {
		return nil, newBuildError(documentID, StageResolve, err)
	}

	correlationID := uuid.NewString()
	log := b.logger.With(
		zap.String("correlation_id", correlationID),
		zap.String("document_id", documentID),
		zap.Bool("ocr", opts.OCREnabled),
		zap.Bool("privileged", opts.Privileged),
	)

	variant := artifactcache.VariantPlain
	if opts.OCREnabled {
		variant = artifactcache.VariantSearchable
	}

	if opts.Privileged {
		if err := b.cache.Bust(documentID); err != nil {
			return nil, newBuildError(documentID, StageCache, err)
		}
		log.Info("cache busted by privileged caller")
	}

	var degraded bool
	var pageCount int
	data, hit, err := b.cache.GetOrBuild(ctx, documentID, variant, func(ctx context.Context) ([]byte, bool, error) {
		artifact, stats, buildErr := b.buildArtifact(ctx, documentID, opts, log)
		if buildErr != nil {
			return nil, false, buildErr
		}
		degraded = stats.ocrDegraded
		pageCount = stats.pageCount

		// A degraded result is a valid plain PDF but must not occupy the
		// searchable slot: the next OCR-enabled request retries OCR
		// instead of replaying the fallback from cache.
		if degraded && variant == artifactcache.VariantSearchable {
			if putErr := b.cache.Put(documentID, artifactcache.VariantPlain, artifact); putErr != nil {
				log.Warn("failed to store plain fallback", zap.Error(putErr))
			}
			return artifact, false, nil
		}
		return artifact, true, nil
	})

	duration := time.Since(start)
	b.recordOutcome(ctx, correlationID, documentID, variant, opts, data, pageCount, duration, hit, degraded, err)

	if err != nil {
		log.Error("build failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, err
	}

	log.Info("build complete",
		zap.Bool("cache_hit", hit),
		zap.Bool("ocr_degraded", degraded),
		zap.Int("size_bytes", len(data)),
		zap.Duration("duration", duration))

	return &Result{
		Data:          data,
		Variant:       variant,
		FileName:      fileName(documentID, variant),
		CacheHit:      hit,
		OCRDegraded:   degraded,
		CorrelationID: correlationID,
	}, nil
}

// buildStats carries side results out of the cached build closure.
type buildStats struct {
	ocrDegraded bool
	pageCount   int
}

// buildArtifact runs the pipeline: resolve, fetch+preprocess, assemble,
// optional OCR.
func (b *Builder) buildArtifact(ctx context.Context, documentID string, opts Options, log *logging.Logger) ([]byte, buildStats, error) {
	var stats buildStats

	md, err := b.resolver.Resolve(ctx, documentID)
	if err != nil {
		return nil, stats, newBuildError(documentID, StageResolve, err)
	}

	paths, err := b.paths.ResolvePaths(md.FolderNumber, md.ImageLabels)
	if err != nil {
		return nil, stats, newBuildError(documentID, StagePaths, err)
	}

	pages, err := b.fetchPages(ctx, documentID, paths)
	if err != nil {
		return nil, stats, err
	}
	stats.pageCount = len(pages) + 1 // title page

	language := opts.Language
	if language == "" {
		language = b.config.DefaultLanguage
	}

	// Extract-mode OCR runs before assembly so the text can ride along as
	// a trailing page.
	var textAppendix string
	if opts.OCREnabled && b.config.OCRMode == OCRModeExtract {
		textAppendix, stats.ocrDegraded = b.extractText(ctx, documentID, pages, language, log)
	}

	var pdfData []byte
	if textAppendix != "" && b.config.EmbedTextPage {
		pdfData, err = b.assembler.AssembleWithAppendix(md, pages, textAppendix)
	} else {
		pdfData, err = b.assembler.Assemble(md, pages)
	}
	if err != nil {
		return nil, stats, newBuildError(documentID, StageAssemble, err)
	}

	if opts.OCREnabled && b.config.OCRMode == OCRModeBackend {
		pdfData, stats.ocrDegraded = b.makeSearchable(ctx, documentID, pdfData, opts, language, log)
	}

	return pdfData, stats, nil
}

// fetchPages fetches and preprocesses page images in parallel, slotting
// results by index so page order survives completion order.
func (b *Builder) fetchPages(ctx context.Context, documentID string, paths []string) ([]assemble.PageImage, error) {
	pages := make([]assemble.PageImage, len(paths))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.config.FetchConcurrency)

	for i, path := range paths {
		group.Go(func() error {
			raw, err := b.store.Fetch(groupCtx, path)
			if err != nil {
				return newBuildError(documentID, StageFetch, err)
			}
			processed, err := b.preprocessor.Process(raw)
			if err != nil {
				return newBuildError(documentID, StagePreprocess, err)
			}
			pages[i] = assemble.PageImage{
				Label:  filepath.Base(path),
				Data:   processed.Data,
				Width:  processed.Width,
				Height: processed.Height,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

// extractText runs the configured extractor over the page images. Failure
// degrades to a plain build instead of failing the request.
func (b *Builder) extractText(ctx context.Context, documentID string, pages []assemble.PageImage, language string, log *logging.Logger) (string, bool) {
	if b.extractor == nil {
		log.Warn("OCR requested but no text extractor is configured")
		return "", true
	}

	images := make([][]byte, len(pages))
	for i, page := range pages {
		images[i] = page.Data
	}

	text, err := b.extractor.ExtractText(ctx, images, language)
	if err != nil {
		log.Warn("text extraction failed, serving plain PDF", zap.Error(err))
		return "", true
	}

	if b.config.WriteTextSidecar && text != "" {
		if err := b.cache.Put(documentID, artifactcache.VariantText, []byte(text)); err != nil {
			log.Warn("failed to store text sidecar", zap.Error(err))
		}
	}
	return text, false
}

// makeSearchable sends the assembled PDF to the OCR backend. Failure
// degrades to the plain PDF.
func (b *Builder) makeSearchable(ctx context.Context, documentID string, pdfData []byte, opts Options, language string, log *logging.Logger) ([]byte, bool) {
	if b.searchabler == nil {
		log.Warn("OCR requested but no backend orchestrator is configured")
		return pdfData, true
	}

	searchable, err := b.searchabler.MakeSearchable(ctx, pdfData, ocr.Request{
		DocumentID: documentID,
		Language:   language,
		Engines:    engineAttempts(opts.Engine),
		Source:     opts.Source,
	})
	if err != nil {
		// ErrOCRFailed is never fatal; the caller still gets a PDF.
		log.Warn("OCR failed, serving plain PDF", zap.Error(err))
		return pdfData, true
	}
	return searchable, false
}

// engineAttempts builds the attempt order for an explicit primary engine:
// the override first, then the remaining defaults.
func engineAttempts(override string) []string {
	if override == "" {
		return nil
	}
	attempts := []string{override}
	for _, engine := range ocr.DefaultEngines {
		if engine != override {
			attempts = append(attempts, engine)
		}
	}
	return attempts
}

// recordOutcome writes the history row and the in-memory stats sample.
// Recording failures never fail a build.
func (b *Builder) recordOutcome(ctx context.Context, correlationID, documentID string, variant artifactcache.Variant, opts Options, data []byte, pageCount int, duration time.Duration, hit, degraded bool, buildErr error) {
	record := db.BuildRecord{
		CorrelationID: correlationID,
		DocumentID:    documentID,
		Variant:       string(variant),
		OCRLanguage:   opts.Language,
		OCREngine:     opts.Engine,
		PageCount:     pageCount,
		SizeBytes:     int64(len(data)),
		DurationMS:    int(duration.Milliseconds()),
		CacheHit:      hit,
		Status:        db.StatusSuccess,
	}
	switch {
	case buildErr != nil:
		record.Status = db.StatusError
		record.ErrorMessage = buildErr.Error()
	case degraded:
		record.Status = db.StatusDegraded
		record.ErrorMessage = "OCR failed, plain PDF served"
	}

	if b.metrics != nil {
		b.metrics.Record(metrics.BuildSample{
			DocumentID: documentID,
			Variant:    record.Variant,
			Duration:   duration,
			CacheHit:   hit,
			Status:     record.Status,
			Timestamp:  time.Now(),
		})
	}

	if b.history == nil {
		return
	}
	if _, err := b.history.InsertBuild(ctx, record); err != nil {
		b.logger.Warn("failed to record build history",
			zap.String("correlation_id", correlationID),
			zap.Error(err))
	}
}

// fileName returns the download name for an artifact variant.
func fileName(documentID string, variant artifactcache.Variant) string {
	if variant == artifactcache.VariantSearchable {
		return documentID + "_OCR_Enabled.pdf"
	}
	return documentID + ".pdf"
}

// Text returns the sidecar text artifact for a document, if present.
func (b *Builder) Text(documentID string) ([]byte, bool, error) {
	if err := metadata.ValidateDocumentID(documentID); err != nil {
		return nil, false, err
	}
	return b.cache.Get(documentID, artifactcache.VariantText)
}

// Exists reports whether any PDF variant is cached for the document;
// used by the existence probe endpoint.
func (b *Builder) Exists(documentID string) bool {
	if err := metadata.ValidateDocumentID(documentID); err != nil {
		return false
	}
	return b.cache.Exists(documentID, artifactcache.VariantPlain) ||
		b.cache.Exists(documentID, artifactcache.VariantSearchable)
}

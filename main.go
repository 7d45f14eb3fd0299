package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"pdf_backend/artifactcache"
	"pdf_backend/assemble"
	"pdf_backend/auth"
	"pdf_backend/builder"
	"pdf_backend/core"
	"pdf_backend/core/validation"
	"pdf_backend/db"
	"pdf_backend/imagestore"
	"pdf_backend/imaging"
	"pdf_backend/logging"
	"pdf_backend/metadata"
	"pdf_backend/metrics"
	"pdf_backend/ocr"
	"pdf_backend/shutdown"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const serviceVersion = "1.0.0"

func main() {
	if HandleServiceCommand(os.Args) {
		return
	}
	if ranAsService, err := RunAsService(); ranAsService {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Service error: %v\n", err)
			os.Exit(core.ExitCodeError)
		}
		return
	}
	os.Exit(run())
}

func run() int {
	// Load .env before anything reads the environment.
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	isDevelopment := os.Getenv("DEV_MODE") == "true"

	logger, err := logging.NewLogger(isDevelopment, core.GetEnvOrDefault("LOG_FILE", "pdf_backend.log"))
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}
	defer func() {
		_ = logger.Sync()
	}()

	if exitCode := runStartupValidation(logger); exitCode != core.ExitCodeSuccess {
		return exitCode
	}

	config, err := LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return core.ExitCodeError
	}

	logger.Info("Configuration loaded",
		zap.String("listen_addr", config.ListenAddr),
		zap.String("index", config.SolrURL),
		zap.String("image_root", config.ImageWebRoot),
		zap.String("artifact_root", config.ArtifactRoot),
		zap.String("ocr_mode", config.OCRMode),
		zap.Strings("ocr_engines", config.OCREngines),
		zap.Bool("dev_mode", config.DevMode),
	)

	manager := shutdown.NewManager(logger, shutdown.WithTimeout(config.ShutdownTimeout))
	manager.Start()

	exitCode, err := runService(manager.Context(), config, logger, manager)
	if err != nil {
		logger.Error("Service failed", zap.Error(err))
	}

	if shutdownErr := manager.Shutdown(); shutdownErr != nil {
		logger.Error("Shutdown incomplete", zap.Error(shutdownErr))
		if exitCode == core.ExitCodeSuccess {
			exitCode = core.ExitCodeError
		}
	}

	return exitCode
}

// runService wires the pipeline and serves HTTP until ctx is cancelled.
func runService(ctx context.Context, config *Config, logger *logging.Logger, manager *shutdown.Manager) (int, error) {
	// Metadata resolver over the index.
	indexClient, err := metadata.NewClient(&http.Client{Timeout: 30 * time.Second}, logger,
		metadata.DefaultClientConfig(config.SolrURL))
	if err != nil {
		return core.ExitCodeError, err
	}
	resolver, err := metadata.NewResolver(indexClient, logger, metadata.DefaultResolverConfig())
	if err != nil {
		return core.ExitCodeError, err
	}

	// Image store.
	pathConfig := imagestore.DefaultPathResolverConfig(config.ImageWebRoot)
	if len(config.ExcludedLabels) > 0 {
		pathConfig.ExcludedLabels = config.ExcludedLabels
	}
	pathResolver, err := imagestore.NewPathResolver(logger, pathConfig)
	if err != nil {
		return core.ExitCodeError, err
	}
	store := imagestore.NewStore(imagestore.DefaultStoreConfig())

	// Preprocessor and assembler.
	preprocessor, err := imaging.NewPreprocessor(imaging.PreprocessorConfig{
		MaxEdge:     config.MaxImageEdge,
		JPEGQuality: config.JPEGQuality,
	})
	if err != nil {
		return core.ExitCodeError, err
	}
	assemblerConfig := assemble.DefaultAssemblerConfig()
	assemblerConfig.LogoPath = config.LogoPath
	if config.AttributionLine != "" {
		assemblerConfig.AttributionLine = config.AttributionLine
	}
	assembler, err := assemble.NewAssembler(logger, assemblerConfig)
	if err != nil {
		return core.ExitCodeError, err
	}

	// Artifact cache.
	cache, err := artifactcache.NewCache(config.ArtifactRoot, logger)
	if err != nil {
		return core.ExitCodeError, err
	}

	// History database with async writes and periodic cleanup.
	database, err := db.NewDatabaseWithConfig(db.DatabaseConfig{
		Path:           config.DBPath,
		MigrationsPath: config.MigrationsPath,
	})
	if err != nil {
		return core.ExitCodeError, err
	}
	if err := database.Migrate(); err != nil {
		return core.ExitCodeError, err
	}

	repository := db.NewRepository(database, nil)
	asyncWriter := db.NewAsyncWriter(repository.HandleAsyncWrite)
	asyncWriter.Start()
	repository = db.NewRepository(database, asyncWriter)

	manager.Register("history-writer", 10, func(ctx context.Context) error {
		if !asyncWriter.StopWithTimeout(5 * time.Second) {
			return errors.New("history writer did not drain in time")
		}
		return nil
	})
	manager.Register("database", 20, func(ctx context.Context) error {
		return database.Close()
	})

	go runHistoryCleanup(manager.Context(), database, config.HistoryRetentionDays, logger)

	// OCR components.
	var searchabler builder.Searchabler
	if config.OCRMode == "backend" && config.OCRBackendKey != "" {
		backendClient, err := ocr.NewBackendClient(config.OCRBackendKey, &http.Client{}, logger,
			ocr.DefaultBackendClientConfig(config.OCRBackendURL))
		if err != nil {
			return core.ExitCodeError, err
		}
		orchestratorConfig := ocr.OrchestratorConfig{
			Engines:         config.OCREngines,
			DefaultLanguage: config.OCRDefaultLanguage,
			Source:          ocr.SourceMode(config.OCRSource),
			PublicDir:       config.PublicDir,
			PublicBaseURL:   config.PublicBaseURL,
		}
		searchabler, err = ocr.NewOrchestrator(backendClient, logger, orchestratorConfig)
		if err != nil {
			return core.ExitCodeError, err
		}
	}

	var extractor ocr.TextExtractor
	if config.OCRMode == "extract" {
		if config.OCRUseVision && config.OpenAIKey != "" {
			visionConfig := ocr.DefaultVisionExtractorConfig()
			visionConfig.Model = config.VisionModel
			extractor, err = ocr.NewVisionExtractor(openai.NewClient(config.OpenAIKey), logger, visionConfig)
		} else {
			extractor, err = ocr.NewTesseractExtractor(logger)
		}
		if err != nil {
			return core.ExitCodeError, err
		}
	}

	// Stats store.
	statsStore := metrics.NewStore(metrics.StoreConfig{
		HistoryCapacity: 100,
		Version:         serviceVersion,
	}, time.Now())

	// The pipeline organism.
	pdfBuilder, err := builder.New(builder.Deps{
		Resolver:     resolver,
		Paths:        pathResolver,
		Store:        store,
		Preprocessor: preprocessor,
		Assembler:    assembler,
		Cache:        cache,
		Searchabler:  searchabler,
		Extractor:    extractor,
		History:      repository,
		Metrics:      statsStore,
		Logger:       logger,
	}, builder.Config{
		FetchConcurrency: config.FetchConcurrency,
		OCRMode:          builder.OCRMode(config.OCRMode),
		EmbedTextPage:    config.OCREmbedTextPage,
		WriteTextSidecar: config.OCRWriteSidecar,
		DefaultLanguage:  config.OCRDefaultLanguage,
	})
	if err != nil {
		return core.ExitCodeError, err
	}

	// Privileged-endpoint guard.
	var guard *auth.Guard
	if config.AdminTokenHash != "" {
		guard, err = auth.NewGuard(auth.DefaultGuardConfig(config.AdminTokenHash), logger)
		if err != nil {
			return core.ExitCodeError, err
		}
		go guard.RateLimiter().StartCleanupTicker(manager.Context(), 10*time.Minute)
	} else {
		logger.Warn("ADMIN_TOKEN_HASH not set, privileged endpoints disabled")
	}

	server, err := NewServer(ServerDeps{
		Builder: pdfBuilder,
		Cache:   cache,
		History: repository,
		Metrics: statsStore,
		Guard:   guard,
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		return core.ExitCodeError, err
	}

	httpServer := &http.Server{
		Addr:         config.ListenAddr,
		Handler:      http.TimeoutHandler(server.Routes(), config.RequestTimeout, "request timed out"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 30*time.Second,
	}

	manager.Register("http", 0, func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})
	manager.Register("temp-artifacts", 30,
		shutdown.CleanupTempArtifacts(logger, cache.TempDir()))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", config.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
		return core.ExitCodeSuccess, nil
	case err := <-errCh:
		return core.ExitCodeError, err
	}
}

// runHistoryCleanup prunes old build rows once a day.
func runHistoryCleanup(ctx context.Context, database *db.Database, retentionDays int, logger *logging.Logger) {
	if retentionDays <= 0 {
		return
	}
	log := logger.Named("history-cleanup")

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := database.CleanupWithContext(ctx, retentionDays)
			if err != nil {
				log.Warn("History cleanup failed", zap.Error(err))
				continue
			}
			if result.RowsDeleted > 0 {
				log.Info("Pruned old build history",
					zap.Int64("rows", result.RowsDeleted),
					zap.Duration("duration", result.Duration))
			}
		}
	}
}

// runStartupValidation runs the configuration suite before heavy
// initialization. Failures abort startup with a descriptive report.
func runStartupValidation(logger *logging.Logger) int {
	logger.Info("Starting startup validation...")

	suite := validation.NewValidationSuite().
		WithShowProgress(true).
		WithTesseractCheck(os.Getenv("OCR_MODE") == "extract" && os.Getenv("OCR_USE_VISION") != "true")

	result := suite.Validate()

	if !result.Success {
		logger.Error("Configuration validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
		)
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.Error(step.Error),
				)
			}
		}
		return core.ExitCodeError
	}

	logger.Info("Configuration validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Duration("duration", result.Duration),
	)
	return core.ExitCodeSuccess
}

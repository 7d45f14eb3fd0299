package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pdf_backend/core"
	"pdf_backend/ocr"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values come from three layers,
// later layers winning: built-in defaults, an optional YAML file named by
// CONFIG_FILE, then environment variables (loaded from .env by main).
type Config struct {
	// HTTP
	ListenAddr     string        `yaml:"listen_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Runtime
	DevMode         bool          `yaml:"dev_mode"`
	LogFilePath     string        `yaml:"log_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Metadata index
	SolrURL string `yaml:"solr_url"`

	// Image store
	ImageWebRoot   string   `yaml:"image_web_root"`
	ExcludedLabels []string `yaml:"excluded_labels"`

	// Artifacts
	ArtifactRoot string `yaml:"artifact_root"`

	// Preprocessing
	MaxImageEdge     int `yaml:"max_image_edge"`
	JPEGQuality      int `yaml:"jpeg_quality"`
	FetchConcurrency int `yaml:"fetch_concurrency"`

	// Assembly
	LogoPath        string `yaml:"logo_path"`
	AttributionLine string `yaml:"attribution_line"`

	// OCR
	OCRMode            string   `yaml:"ocr_mode"` // "backend" or "extract"
	OCRBackendURL      string   `yaml:"ocr_backend_url"`
	OCRBackendKey      string   `yaml:"-"`          // env only, never from a file on disk
	OCRSource          string   `yaml:"ocr_source"` // "upload" or "url"
	OCRDefaultLanguage string   `yaml:"ocr_language"`
	OCREngines         []string `yaml:"ocr_engines"`
	OCREmbedTextPage   bool     `yaml:"ocr_embed_text_page"`
	OCRWriteSidecar    bool     `yaml:"ocr_write_sidecar"`
	OCRUseVision       bool     `yaml:"ocr_use_vision"`
	OpenAIKey          string   `yaml:"-"`
	VisionModel        string   `yaml:"vision_model"`

	// Public staging for URL-mode OCR submissions
	PublicDir     string `yaml:"public_dir"`
	PublicBaseURL string `yaml:"public_base_url"`

	// Privileged endpoints
	AdminTokenHash string `yaml:"-"`

	// History database
	DBPath               string `yaml:"db_path"`
	MigrationsPath       string `yaml:"migrations_path"`
	HistoryRetentionDays int    `yaml:"history_retention_days"`
}

// defaultConfig returns the built-in defaults.
func defaultConfig() Config {
	return Config{
		ListenAddr:           ":8080",
		RequestTimeout:       5 * time.Minute,
		LogFilePath:          "pdf_backend.log",
		ShutdownTimeout:      60 * time.Second,
		MaxImageEdge:         2000,
		JPEGQuality:          70,
		FetchConcurrency:     4,
		OCRMode:              "backend",
		OCRBackendURL:        "https://api.ocr.space/parse/image",
		OCRSource:            string(ocr.SourceUpload),
		OCRDefaultLanguage:   "eng",
		OCREngines:           ocr.DefaultEngines,
		OCREmbedTextPage:     true,
		OCRWriteSidecar:      true,
		VisionModel:          "gpt-4o-mini",
		DBPath:               "data/history.db",
		MigrationsPath:       "file://db/migrations",
		HistoryRetentionDays: 90,
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML
// file, and the environment.
func LoadConfig() (*Config, error) {
	config := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	config.applyEnv()

	if err := config.validate(); err != nil {
		return nil, err
	}

	if config.PublicDir == "" {
		config.PublicDir = filepath.Join(config.ArtifactRoot, "public")
	}

	return &config, nil
}

// applyEnv overlays environment variables onto the configuration. Only set
// variables override.
func (c *Config) applyEnv() {
	c.ListenAddr = core.GetEnvOrDefault("LISTEN_ADDR", c.ListenAddr)
	c.RequestTimeout = core.ParseDurationEnv("REQUEST_TIMEOUT", c.RequestTimeout)
	c.DevMode = core.ParseBoolEnv("DEV_MODE", c.DevMode)
	c.LogFilePath = core.GetEnvOrDefault("LOG_FILE", c.LogFilePath)
	c.ShutdownTimeout = core.ParseDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)

	c.SolrURL = core.GetEnvOrDefault("SOLR_URL", c.SolrURL)
	c.ImageWebRoot = core.GetEnvOrDefault("IMAGE_WEB_ROOT", c.ImageWebRoot)
	c.ArtifactRoot = core.GetEnvOrDefault("ARTIFACT_ROOT", c.ArtifactRoot)
	if labels := core.SplitAndTrim(os.Getenv("EXCLUDED_LABELS")); len(labels) > 0 {
		c.ExcludedLabels = labels
	}

	c.MaxImageEdge = core.ParseIntEnv("MAX_IMAGE_EDGE", c.MaxImageEdge)
	c.JPEGQuality = core.ParseIntEnv("JPEG_QUALITY", c.JPEGQuality)
	c.FetchConcurrency = core.ParseIntEnv("FETCH_CONCURRENCY", c.FetchConcurrency)

	c.LogoPath = core.GetEnvOrDefault("LOGO_PATH", c.LogoPath)
	c.AttributionLine = core.GetEnvOrDefault("ATTRIBUTION_LINE", c.AttributionLine)

	c.OCRMode = core.GetEnvOrDefault("OCR_MODE", c.OCRMode)
	c.OCRBackendURL = core.GetEnvOrDefault("OCR_BACKEND_URL", c.OCRBackendURL)
	c.OCRBackendKey = core.GetEnvOrDefault("OCR_BACKEND_KEY", c.OCRBackendKey)
	c.OCRSource = core.GetEnvOrDefault("OCR_SOURCE", c.OCRSource)
	c.OCRDefaultLanguage = core.GetEnvOrDefault("OCR_LANGUAGE", c.OCRDefaultLanguage)
	if engines := core.SplitAndTrim(os.Getenv("OCR_ENGINES")); len(engines) > 0 {
		c.OCREngines = engines
	}
	c.OCREmbedTextPage = core.ParseBoolEnv("OCR_EMBED_TEXT_PAGE", c.OCREmbedTextPage)
	c.OCRWriteSidecar = core.ParseBoolEnv("OCR_WRITE_SIDECAR", c.OCRWriteSidecar)
	c.OCRUseVision = core.ParseBoolEnv("OCR_USE_VISION", c.OCRUseVision)
	c.OpenAIKey = core.GetEnvOrDefault("OPENAI_API_KEY", c.OpenAIKey)
	c.VisionModel = core.GetEnvOrDefault("VISION_MODEL", c.VisionModel)

	c.PublicDir = core.GetEnvOrDefault("PUBLIC_DIR", c.PublicDir)
	c.PublicBaseURL = core.GetEnvOrDefault("PUBLIC_BASE_URL", c.PublicBaseURL)

	c.AdminTokenHash = core.GetEnvOrDefault("ADMIN_TOKEN_HASH", c.AdminTokenHash)

	c.DBPath = core.GetEnvOrDefault("DB_PATH", c.DBPath)
	c.MigrationsPath = core.GetEnvOrDefault("DB_MIGRATIONS", c.MigrationsPath)
	c.HistoryRetentionDays = core.ParseIntEnv("HISTORY_RETENTION_DAYS", c.HistoryRetentionDays)
}

// validate checks required fields and value ranges.
func (c *Config) validate() error {
	if c.SolrURL == "" {
		return core.ErrMissingConfig("SOLR_URL")
	}
	if c.ImageWebRoot == "" {
		return core.ErrMissingConfig("IMAGE_WEB_ROOT")
	}
	if c.ArtifactRoot == "" {
		return core.ErrMissingConfig("ARTIFACT_ROOT")
	}

	switch c.OCRMode {
	case "backend", "extract":
	default:
		return fmt.Errorf("config: OCR_MODE must be \"backend\" or \"extract\", got %q", c.OCRMode)
	}

	switch ocr.SourceMode(c.OCRSource) {
	case ocr.SourceUpload:
	case ocr.SourceURL:
		if c.PublicBaseURL == "" {
			return fmt.Errorf("config: OCR_SOURCE=url requires PUBLIC_BASE_URL")
		}
	default:
		return fmt.Errorf("config: OCR_SOURCE must be \"upload\" or \"url\", got %q", c.OCRSource)
	}

	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("config: JPEG_QUALITY must be 1-100, got %d", c.JPEGQuality)
	}
	if c.MaxImageEdge <= 0 {
		return fmt.Errorf("config: MAX_IMAGE_EDGE must be positive, got %d", c.MaxImageEdge)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("config: FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency)
	}

	return nil
}

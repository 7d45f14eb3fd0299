package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pdf_backend/core"
)

// clearConfigEnv blanks every variable LoadConfig reads so a developer's
// shell cannot leak into assertions.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"LISTEN_ADDR", "REQUEST_TIMEOUT", "DEV_MODE", "LOG_FILE", "SHUTDOWN_TIMEOUT",
		"SOLR_URL", "IMAGE_WEB_ROOT", "ARTIFACT_ROOT", "EXCLUDED_LABELS",
		"MAX_IMAGE_EDGE", "JPEG_QUALITY", "FETCH_CONCURRENCY",
		"LOGO_PATH", "ATTRIBUTION_LINE",
		"OCR_MODE", "OCR_BACKEND_URL", "OCR_BACKEND_KEY", "OCR_SOURCE",
		"OCR_LANGUAGE", "OCR_ENGINES", "OCR_EMBED_TEXT_PAGE", "OCR_WRITE_SIDECAR",
		"OCR_USE_VISION", "OPENAI_API_KEY", "VISION_MODEL",
		"PUBLIC_DIR", "PUBLIC_BASE_URL", "ADMIN_TOKEN_HASH",
		"DB_PATH", "DB_MIGRATIONS", "HISTORY_RETENTION_DAYS", "CONFIG_FILE",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SOLR_URL", "http://localhost:8983/solr/collection")
	t.Setenv("IMAGE_WEB_ROOT", "/srv/images")
	t.Setenv("ARTIFACT_ROOT", "/srv/artifacts")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", config.ListenAddr)
	}
	if config.RequestTimeout != 5*time.Minute {
		t.Errorf("RequestTimeout = %v, want 5m", config.RequestTimeout)
	}
	if config.OCRMode != "backend" {
		t.Errorf("OCRMode = %q, want backend", config.OCRMode)
	}
	if config.OCRDefaultLanguage != "eng" {
		t.Errorf("OCRDefaultLanguage = %q, want eng", config.OCRDefaultLanguage)
	}
	if config.MaxImageEdge != 2000 {
		t.Errorf("MaxImageEdge = %d, want 2000", config.MaxImageEdge)
	}
	if want := filepath.Join("/srv/artifacts", "public"); config.PublicDir != want {
		t.Errorf("PublicDir = %q, want %q", config.PublicDir, want)
	}
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"index url", "SOLR_URL"},
		{"image root", "IMAGE_WEB_ROOT"},
		{"artifact root", "ARTIFACT_ROOT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			_, err := LoadConfig()
			if err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
			var configErr *core.ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("error type = %T, want *core.ConfigError", err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("OCR_MODE", "extract")
	t.Setenv("OCR_ENGINES", "3, 2 ,1")
	t.Setenv("JPEG_QUALITY", "85")
	t.Setenv("REQUEST_TIMEOUT", "90s")
	t.Setenv("EXCLUDED_LABELS", "cover.jpg,spine.jpg")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", config.ListenAddr)
	}
	if config.OCRMode != "extract" {
		t.Errorf("OCRMode = %q, want extract", config.OCRMode)
	}
	if len(config.OCREngines) != 3 || config.OCREngines[0] != "3" || config.OCREngines[2] != "1" {
		t.Errorf("OCREngines = %v, want [3 2 1]", config.OCREngines)
	}
	if config.JPEGQuality != 85 {
		t.Errorf("JPEGQuality = %d, want 85", config.JPEGQuality)
	}
	if config.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v, want 90s", config.RequestTimeout)
	}
	if len(config.ExcludedLabels) != 2 || config.ExcludedLabels[1] != "spine.jpg" {
		t.Errorf("ExcludedLabels = %v", config.ExcludedLabels)
	}
}

func TestLoadConfig_YAMLFileOverlay(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	yamlPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "listen_addr: \":7070\"\njpeg_quality: 60\nattribution_line: \"Test Library\"\n"
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_FILE", yamlPath)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070 from file", config.ListenAddr)
	}
	if config.JPEGQuality != 60 {
		t.Errorf("JPEGQuality = %d, want 60 from file", config.JPEGQuality)
	}
	if config.AttributionLine != "Test Library" {
		t.Errorf("AttributionLine = %q", config.AttributionLine)
	}
}

func TestLoadConfig_EnvBeatsFile(t *testing.T) {
	clearConfigEnv(t)
	setRequiredEnv(t)

	yamlPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("listen_addr: \":7070\"\n"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	t.Setenv("CONFIG_FILE", yamlPath)
	t.Setenv("LISTEN_ADDR", ":6060")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.ListenAddr != ":6060" {
		t.Errorf("ListenAddr = %q, want env to win over file", config.ListenAddr)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad ocr mode", "OCR_MODE", "clairvoyance"},
		{"bad ocr source", "OCR_SOURCE", "fax"},
		{"url source without base url", "OCR_SOURCE", "url"},
		{"quality too high", "JPEG_QUALITY", "101"},
		{"quality zero", "JPEG_QUALITY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadConfig(); err == nil {
				t.Fatal("LoadConfig succeeded, want error")
			}
		})
	}
}

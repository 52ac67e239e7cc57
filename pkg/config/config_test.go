package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Flickr.PageSize != 250 {
		t.Errorf("Expected default page size to be 250, got %d", config.Flickr.PageSize)
	}
	if config.MaxPagesPerQuery() != 16 {
		t.Errorf("Expected 16 pages per query, got %d", config.MaxPagesPerQuery())
	}
	if config.Harvest.BoxDivisionThreshold != 1e-4 {
		t.Errorf("Expected box division threshold 1e-4, got %v", config.Harvest.BoxDivisionThreshold)
	}
	if config.Harvest.ChunkSize != 4096 {
		t.Errorf("Expected chunk size 4096, got %d", config.Harvest.ChunkSize)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLICKRHARVEST_API_KEY", "env-key")
	t.Setenv("FLICKRHARVEST_REQUESTS_PER_MINUTE", "30")
	t.Setenv("FLICKRHARVEST_REQUESTS_PER_HOUR", "1800")
	t.Setenv("FLICKRHARVEST_OUTPUT_DIR", "/tmp/harvest")
	t.Setenv("FLICKRHARVEST_DOWNLOAD_ASSETS", "true")
	t.Setenv("FLICKRHARVEST_CACHE_BACKEND", "memory")
	t.Setenv("FLICKRHARVEST_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Flickr.APIKey != "env-key" {
		t.Errorf("Expected API key env-key, got %s", config.Flickr.APIKey)
	}
	if config.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected requests per minute to be 30, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.RateLimit.RequestsPerHour != 1800 {
		t.Errorf("Expected requests per hour to be 1800, got %d", config.RateLimit.RequestsPerHour)
	}
	if config.Harvest.OutputDir != "/tmp/harvest" {
		t.Errorf("Expected output dir /tmp/harvest, got %s", config.Harvest.OutputDir)
	}
	if !config.Harvest.DownloadAssets {
		t.Error("Expected asset downloads to be enabled")
	}
	if config.Cache.Backend != "memory" {
		t.Errorf("Expected memory cache backend, got %s", config.Cache.Backend)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("FLICKRHARVEST_PAGE_SIZE", "lots")

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err == nil {
		t.Fatal("Expected an error for a non-numeric page size")
	}
	if !strings.Contains(err.Error(), "PAGE_SIZE") {
		t.Errorf("Expected error to name the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{
			name:      "defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "page size above API maximum",
			mutate:    func(c *Config) { c.Flickr.PageSize = 501 },
			wantError: true,
		},
		{
			name:      "query cap smaller than a page",
			mutate:    func(c *Config) { c.Flickr.MaxResultsPerQuery = 100 },
			wantError: true,
		},
		{
			name:      "non-positive threshold",
			mutate:    func(c *Config) { c.Harvest.BoxDivisionThreshold = 0 },
			wantError: true,
		},
		{
			name: "downloads without output dir",
			mutate: func(c *Config) {
				c.Harvest.DownloadAssets = true
				c.Harvest.OutputDir = ""
			},
			wantError: true,
		},
		{
			name:      "identical asset suffixes",
			mutate:    func(c *Config) { c.Flickr.FallbackSuffix = c.Flickr.AssetSuffix },
			wantError: true,
		},
		{
			name:      "unknown cache backend",
			mutate:    func(c *Config) { c.Cache.Backend = "redis" },
			wantError: true,
		},
		{
			name:      "mongo cache",
			mutate:    func(c *Config) { c.Cache.Backend = "mongo" },
			wantError: false,
		},
		{
			name:      "zero retry attempts",
			mutate:    func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "chatty" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"api-key":         "flag-key",
		"rate-limit":      120,
		"output":          "/data/out",
		"download-assets": true,
		"enrich":          false,
		"cache":           "mongo",
		"log-level":       "warn",
	})

	if config.Flickr.APIKey != "flag-key" {
		t.Errorf("Expected API key flag-key, got %s", config.Flickr.APIKey)
	}
	if config.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("Expected 120 requests per minute, got %d", config.RateLimit.RequestsPerMinute)
	}
	if config.Harvest.OutputDir != "/data/out" {
		t.Errorf("Expected output /data/out, got %s", config.Harvest.OutputDir)
	}
	if !config.Harvest.DownloadAssets || config.Harvest.EnrichOwners {
		t.Error("Expected boolean flags to be applied")
	}
	if config.Cache.Backend != "mongo" {
		t.Errorf("Expected mongo backend, got %s", config.Cache.Backend)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("Expected warn level, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	config := DefaultConfig()
	config.Flickr.APIKey = "saved-key"
	config.Retry.MaxDelay = 90 * time.Second
	config.Harvest.OutputDir = "/srv/harvest"

	if err := config.Save(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Saved config missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Flickr.APIKey != "saved-key" {
		t.Errorf("Expected saved-key, got %s", loaded.Flickr.APIKey)
	}
	if loaded.Retry.MaxDelay != 90*time.Second {
		t.Errorf("Expected 90s max delay, got %v", loaded.Retry.MaxDelay)
	}
	if loaded.Harvest.OutputDir != "/srv/harvest" {
		t.Errorf("Expected /srv/harvest, got %s", loaded.Harvest.OutputDir)
	}
}

func TestLoadPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "flickr:\n  api_key: file-key\nrate_limit:\n  requests_per_minute: 10\n"
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FLICKRHARVEST_REQUESTS_PER_MINUTE", "20")

	config, err := Load(configPath, map[string]interface{}{"api-key": "flag-key"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if config.Flickr.APIKey != "flag-key" {
		t.Errorf("Expected flag to win, got %s", config.Flickr.APIKey)
	}
	if config.RateLimit.RequestsPerMinute != 20 {
		t.Errorf("Expected environment to override file, got %d", config.RateLimit.RequestsPerMinute)
	}
}

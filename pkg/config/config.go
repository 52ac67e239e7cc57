package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the harvester reads
const EnvPrefix = "FLICKRHARVEST_"

// Config holds all configuration options for the harvester
type Config struct {
	Flickr        FlickrConfig       `yaml:"flickr" json:"flickr"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig        `yaml:"retry" json:"retry"`
	Harvest       HarvestConfig      `yaml:"harvest" json:"harvest"`
	Cache         CacheConfig        `yaml:"cache" json:"cache"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Server        ServerConfig       `yaml:"server" json:"server"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// FlickrConfig describes the remote search API
type FlickrConfig struct {
	APIKey             string        `yaml:"api_key" json:"api_key"`
	BaseURL            string        `yaml:"base_url" json:"base_url"`
	AssetBaseURL       string        `yaml:"asset_base_url" json:"asset_base_url"`
	PageSize           int           `yaml:"page_size" json:"page_size"`
	MaxResultsPerQuery int           `yaml:"max_results_per_query" json:"max_results_per_query"`
	Accuracy           int           `yaml:"accuracy" json:"accuracy"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	AssetSuffix        string        `yaml:"asset_suffix" json:"asset_suffix"`
	FallbackSuffix     string        `yaml:"fallback_suffix" json:"fallback_suffix"`
}

// RateLimitConfig holds client-side throttling configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	// RequestsPerHour caps calls over a rolling hour; public keys get 3600
	RequestsPerHour int `yaml:"requests_per_hour" json:"requests_per_hour"`
}

// RetryConfig bounds the retry layer above the search client
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// HarvestConfig holds partitioning and output settings
type HarvestConfig struct {
	BoxDivisionThreshold float64 `yaml:"box_division_threshold" json:"box_division_threshold"`
	ChunkSize            int     `yaml:"chunk_size" json:"chunk_size"`
	OutputDir            string  `yaml:"output_dir" json:"output_dir"`
	DownloadAssets       bool    `yaml:"download_assets" json:"download_assets"`
	EnrichOwners         bool    `yaml:"enrich_owners" json:"enrich_owners"`
	DatasetFile          string  `yaml:"dataset_file" json:"dataset_file"`
}

// CacheConfig selects the optional response cache
type CacheConfig struct {
	Backend    string        `yaml:"backend" json:"backend"`
	ShelfLife  time.Duration `yaml:"shelf_life" json:"shelf_life"`
	MongoURI   string        `yaml:"mongo_uri" json:"mongo_uri"`
	Database   string        `yaml:"database" json:"database"`
	Collection string        `yaml:"collection" json:"collection"`
}

// NotificationConfig holds notification sink settings
type NotificationConfig struct {
	NATSURL       string `yaml:"nats_url" json:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
	Desktop       bool   `yaml:"desktop" json:"desktop"`
}

// ServerConfig holds the HTTP control surface settings
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Flickr: FlickrConfig{
			BaseURL:            "https://api.flickr.com/services/rest/",
			AssetBaseURL:       "https://live.staticflickr.com",
			PageSize:           250,
			MaxResultsPerQuery: 4000,
			Accuracy:           16,
			Timeout:            30 * time.Second,
			AssetSuffix:        "b",
			FallbackSuffix:     "",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			RequestsPerHour:   3600,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		Harvest: HarvestConfig{
			BoxDivisionThreshold: 1e-4,
			ChunkSize:            4096,
			OutputDir:            "./harvest",
			DownloadAssets:       false,
			EnrichOwners:         true,
			DatasetFile:          "dataset.csv",
		},
		Cache: CacheConfig{
			Backend:    "none",
			ShelfLife:  24 * time.Hour,
			MongoURI:   "mongodb://localhost:27017",
			Database:   "flickrharvest",
			Collection: "responses",
		},
		Notifications: NotificationConfig{
			SubjectPrefix: "flickrharvest",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// MaxPagesPerQuery is the number of pages the API will serve for one query
func (c *Config) MaxPagesPerQuery() int {
	if c.Flickr.PageSize <= 0 {
		return 0
	}
	return c.Flickr.MaxResultsPerQuery / c.Flickr.PageSize
}

func getEnv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := getEnv("API_KEY"); v != "" {
		c.Flickr.APIKey = v
	}
	if v := getEnv("BASE_URL"); v != "" {
		c.Flickr.BaseURL = v
	}
	if v := getEnv("PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPAGE_SIZE: %w", EnvPrefix, err))
		} else {
			c.Flickr.PageSize = n
		}
	}
	if v := getEnv("REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerMinute = n
		}
	}
	if v := getEnv("REQUESTS_PER_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_HOUR: %w", EnvPrefix, err))
		} else {
			c.RateLimit.RequestsPerHour = n
		}
	}
	if v := getEnv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_RETRIES: %w", EnvPrefix, err))
		} else {
			c.Retry.MaxAttempts = n
		}
	}
	if v := getEnv("OUTPUT_DIR"); v != "" {
		c.Harvest.OutputDir = v
	}
	if v := getEnv("DOWNLOAD_ASSETS"); v != "" {
		c.Harvest.DownloadAssets = strings.EqualFold(v, "true")
	}
	if v := getEnv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := getEnv("MONGO_URI"); v != "" {
		c.Cache.MongoURI = v
	}
	if v := getEnv("NATS_URL"); v != "" {
		c.Notifications.NATSURL = v
	}
	if v := getEnv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getEnv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getEnv("LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".flickrharvest.yaml",
		".flickrharvest.yml",
		filepath.Join(home, ".config", "flickrharvest", "config.yaml"),
		filepath.Join(home, ".config", "flickrharvest", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Flickr.BaseURL == "" {
		errs = append(errs, errors.New("flickr base URL is required"))
	}
	if c.Flickr.PageSize <= 0 || c.Flickr.PageSize > 500 {
		errs = append(errs, errors.New("page size must be between 1 and 500"))
	}
	if c.Flickr.MaxResultsPerQuery < c.Flickr.PageSize {
		errs = append(errs, errors.New("max results per query must be at least one page"))
	}
	if c.Flickr.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Flickr.AssetSuffix == c.Flickr.FallbackSuffix {
		errs = append(errs, errors.New("fallback asset suffix must differ from the primary suffix"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.RequestsPerHour < 0 {
		errs = append(errs, errors.New("requests per hour must not be negative"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max attempts must be at least 1"))
	}

	if c.Harvest.BoxDivisionThreshold <= 0 {
		errs = append(errs, errors.New("box division threshold must be positive"))
	}
	if c.Harvest.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Harvest.DownloadAssets && c.Harvest.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required when downloading assets"))
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "", "none", "memory":
	case "mongo":
		if c.Cache.MongoURI == "" {
			errs = append(errs, errors.New("mongo URI is required for the mongo cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys are the CLI flag names.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.Flickr.APIKey = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Flickr.PageSize = v
	}
	if v, ok := flags["rate-limit"].(int); ok && v > 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok && v > 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Harvest.OutputDir = v
	}
	if v, ok := flags["download-assets"].(bool); ok {
		c.Harvest.DownloadAssets = v
	}
	if v, ok := flags["enrich"].(bool); ok {
		c.Harvest.EnrichOwners = v
	}
	if v, ok := flags["dataset"].(string); ok && v != "" {
		c.Harvest.DatasetFile = v
	}
	if v, ok := flags["cache"].(string); ok && v != "" {
		c.Cache.Backend = v
	}
	if v, ok := flags["nats-url"].(string); ok && v != "" {
		c.Notifications.NATSURL = v
	}
	if v, ok := flags["addr"].(string); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment > .env files > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".flickrharvest.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

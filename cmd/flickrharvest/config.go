package main

import (
	"fmt"
	"os"
	"path/filepath"

	"flickrharvest/pkg/auth"
	"flickrharvest/pkg/config"
	"flickrharvest/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage flickrharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FLICKRHARVEST_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.flickrharvest.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after every source is applied.

The API key is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value ranges
  - Output and log paths`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# flickrharvest configuration file
#
# Every option can also be set with an environment variable prefixed with
# FLICKRHARVEST_, for example FLICKRHARVEST_API_KEY or FLICKRHARVEST_OUTPUT_DIR.

flickr:
  # API key. Prefer 'flickrharvest auth login', which keeps it out of this file.
  api_key: ""
  base_url: "https://api.flickr.com/services/rest/"
  asset_base_url: "https://live.staticflickr.com"

  # Results per page and the most results the API serves for one query.
  # A query needing more than max_results_per_query / page_size pages is divided.
  page_size: 250
  max_results_per_query: 4000

  # Minimum location accuracy (1-16)
  accuracy: 16
  timeout: 30s

  # Size suffix for downloaded assets and the one tried when it is missing
  asset_suffix: "b"
  fallback_suffix: ""

rate_limit:
  requests_per_minute: 60
  # Rolling hourly cap; 0 disables it
  requests_per_hour: 3600

retry:
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s

harvest:
  # Smallest box area, in square degrees, that is still divided spatially.
  # Smaller boxes are divided in time instead.
  box_division_threshold: 0.0001
  chunk_size: 4096
  output_dir: "./harvest"
  dataset_file: "dataset.csv"
  download_assets: false
  enrich_owners: true

cache:
  # none, memory or mongo
  backend: "none"
  shelf_life: 24h
  mongo_uri: "mongodb://localhost:27017"
  database: "flickrharvest"
  collection: "responses"

notifications:
  # Publish harvest events to NATS when set
  nats_url: ""
  subject_prefix: "flickrharvest"
  desktop: false

server:
  addr: ":8080"

logging:
  # debug, info, warn, error
  level: "info"
  # Leave empty to log to stderr only
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".flickrharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err)
			return err
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err)
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store an API key with 'flickrharvest auth login'")
	fmt.Println("2. Run 'flickrharvest config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'flickrharvest harvest --start YYYY-MM-DD --end YYYY-MM-DD'")
	return nil
}

// maskedConfig returns a copy of cfg that is safe to print
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	if display.Flickr.APIKey != "" {
		display.Flickr.APIKey = auth.MaskKey(display.Flickr.APIKey)
	}
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err)
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FLICKRHARVEST_*)")
	fmt.Println("3. .env files")
	if configFile != "" {
		fmt.Printf("4. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("4. Configuration file: (searched)")
	}
	fmt.Println("5. Default values")
	return nil
}

// configProblems lists what would stop a harvest from running with cfg,
// and what merely looks wrong.
func configProblems(cfg *config.Config) (problems, warnings []string) {
	if cfg.Harvest.OutputDir != "" {
		if err := os.MkdirAll(cfg.Harvest.OutputDir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if cfg.Flickr.APIKey == "" {
		warnings = append(warnings, "no API key in configuration; a stored profile will be used")
	}
	if cfg.RateLimit.RequestsPerHour == 0 || cfg.RateLimit.RequestsPerHour > 3600 {
		warnings = append(warnings, "requests_per_hour is above the public key allowance of 3600")
	}
	if cfg.Cache.Backend == "mongo" && cfg.Cache.MongoURI == "" {
		problems = append(problems, "cache backend mongo needs mongo_uri")
	}
	return problems, warnings
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		ui.PrintInfo("Validating configuration", configFile)
	} else {
		ui.PrintInfo("Validating configuration", "(searched locations and environment)")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return err
	}

	problems, warnings := configProblems(cfg)
	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Harvest.OutputDir)
	fmt.Printf("  Pages per query: %d\n", cfg.MaxPagesPerQuery())
	fmt.Printf("  Rate limit: %d requests/minute, %d requests/hour\n", cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Cache: %s\n", cfg.Cache.Backend)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

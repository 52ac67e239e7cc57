package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"flickrharvest/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flickrharvest",
	Short: "Harvest geotagged Flickr photo metadata for a region and time window",
	Long: `flickrharvest collects every geotagged public Flickr photo inside a
bounding box and date range.

The search API only serves the first 4000 results of a query, so the
harvester divides the region spatially into quadrants, or temporally into
halves once the box is too small, until every piece fits. Pieces are
fetched page by page and the results deduplicated into one dataset.

Features:
  - Adaptive spatial and temporal partitioning
  - Optional asset download with a smaller-variant fallback
  - Owner hometown enrichment
  - Full-screen dashboard (--tui) or a compact progress line
  - HTTP control surface with Prometheus metrics (serve)
  - API keys kept in the system keychain or an encrypted file`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
			if logLevel == "" {
				logLevel = "error"
			}
		}
		if verbose && logLevel == "" {
			logLevel = "debug"
		}

		if cmd.Name() != "version" && cmd.Name() != "help" && !quiet {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.flickrharvest.yaml, then ~/.config/flickrharvest/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a harvest ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every page fetched and debug logs")

	rootCmd.SetVersionTemplate(`flickrharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

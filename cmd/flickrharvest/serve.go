package main

import (
	"os"
	"os/signal"
	"syscall"

	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/server"
	"flickrharvest/pkg/ui"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNATSURL string
	serveCache   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run harvests through an HTTP API",
	Long: `Serve an HTTP API for starting, watching and halting harvests.

Routes:
  GET    /health
  GET    /metrics                      Prometheus metrics
  POST   /api/v1/harvests              start a harvest
  GET    /api/v1/harvests              list harvests
  GET    /api/v1/harvests/:id          harvest status and messages
  DELETE /api/v1/harvests/:id          halt a harvest
  GET    /api/v1/harvests/:id/records  finished dataset as JSON or CSV

Requests that carry no API key use the configured key or the default
stored profile.`,
	Example: `  flickrharvest serve --addr :9090 --cache memory`,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
	serveCmd.Flags().StringVar(&serveNATSURL, "nats-url", "", "publish harvest events to this NATS server")
	serveCmd.Flags().StringVar(&serveCache, "cache", "", "response cache backend (none, memory, mongo)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"addr":     serveAddr,
		"nats-url": serveNATSURL,
		"cache":    serveCache,
	})
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}
	log := logger.GetLogger()

	if cfg.Flickr.APIKey == "" {
		if key, source, err := resolveAPIKey(cfg, ""); err == nil {
			cfg.Flickr.APIKey = key
			log.WithField("key_source", source).Info("using stored API key for requests without one")
		} else {
			log.Warn("no default API key; every request must carry one")
		}
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responses, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		ui.PrintError("Failed to open response cache", err)
		return err
	}
	defer closeCache()

	sinks, closeSinks := openSinks(cfg, log)
	defer closeSinks()

	clients := harvester.NewClientFactory(cfg, responses, log)
	srv := server.New(cfg, server.NewFactory(cfg, clients, sinks, log), log)

	ui.PrintInfo("Listening", cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.WithError(err).Error("server stopped")
		return err
	}
	ui.PrintSuccess("Server stopped")
	return nil
}

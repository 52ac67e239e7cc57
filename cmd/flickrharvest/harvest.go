package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"flickrharvest/pkg/config"
	"flickrharvest/pkg/dataset"
	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/notify"
	"flickrharvest/pkg/region"
	"flickrharvest/pkg/ui"
	"flickrharvest/pkg/ui/tui"

	"github.com/spf13/cobra"
)

// harvestOptions are the harvest command's flags
type harvestOptions struct {
	west, south, east, north float64
	start, end               string
	profile                  string
	apiKey                   string
	output                   string
	datasetFile              string
	downloadAssets           bool
	enrich                   bool
	cache                    string
	rateLimit                int
	useTUI                   bool
}

var harvestOpts harvestOptions

// harvestCmd represents the harvest command
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest every geotagged photo in a bounding box and date range",
	Long: `Harvest metadata for every geotagged public photo taken inside a
bounding box between two dates, and write it to a CSV dataset.

The API key is taken from, in order:
  - the --profile flag
  - the configuration file or FLICKRHARVEST_API_KEY
  - the default stored profile ('flickrharvest auth use')

Press Ctrl+C to stop a running harvest. A stopped harvest writes nothing.`,
	Example: `  # Greater London during 2019
  flickrharvest harvest --west -0.51 --south 51.28 --east 0.33 --north 51.69 \
      --start 2019-01-01 --end 2020-01-01

  # Same, downloading the photos and watching the dashboard
  flickrharvest harvest --west -0.51 --south 51.28 --east 0.33 --north 51.69 \
      --start 2019-01-01 --end 2020-01-01 --download-assets --tui

  # Use a specific stored key and cache responses in memory
  flickrharvest harvest --start 2020-03-01 --end 2020-03-02 --profile work --cache memory`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)

	f := harvestCmd.Flags()
	f.Float64Var(&harvestOpts.west, "west", -180, "western longitude of the box")
	f.Float64Var(&harvestOpts.south, "south", -90, "southern latitude of the box")
	f.Float64Var(&harvestOpts.east, "east", 180, "eastern longitude of the box")
	f.Float64Var(&harvestOpts.north, "north", 90, "northern latitude of the box")
	f.StringVar(&harvestOpts.start, "start", "", "first day of the window (YYYY-MM-DD)")
	f.StringVar(&harvestOpts.end, "end", "", "end of the window (YYYY-MM-DD)")
	f.StringVarP(&harvestOpts.profile, "profile", "p", "", "use a specific stored API key profile")
	f.StringVar(&harvestOpts.apiKey, "api-key", "", "Flickr API key (overrides stored profiles)")
	f.StringVarP(&harvestOpts.output, "output", "o", "", "output directory for the dataset and assets")
	f.StringVar(&harvestOpts.datasetFile, "dataset", "", "dataset file name, relative to the output directory")
	f.BoolVar(&harvestOpts.downloadAssets, "download-assets", false, "download each photo next to the dataset")
	f.BoolVar(&harvestOpts.enrich, "enrich", true, "look up each owner's hometown")
	f.StringVar(&harvestOpts.cache, "cache", "", "response cache backend (none, memory, mongo)")
	f.IntVar(&harvestOpts.rateLimit, "rate-limit", 0, "API requests per minute")
	f.BoolVar(&harvestOpts.useTUI, "tui", false, "show the full-screen dashboard")

	_ = harvestCmd.MarkFlagRequired("start")
	_ = harvestCmd.MarkFlagRequired("end")
}

// flagMap collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects.
func (o *harvestOptions) flagMap(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("api-key") {
		flags["api-key"] = o.apiKey
	}
	if changed("output") {
		flags["output"] = o.output
	}
	if changed("dataset") {
		flags["dataset"] = o.datasetFile
	}
	if changed("download-assets") {
		flags["download-assets"] = o.downloadAssets
	}
	if changed("enrich") {
		flags["enrich"] = o.enrich
	}
	if changed("cache") {
		flags["cache"] = o.cache
	}
	if changed("rate-limit") {
		flags["rate-limit"] = o.rateLimit
	}
	return flags
}

// params builds the harvest parameters from the flags and configuration
func (o *harvestOptions) params(cfg *config.Config, apiKey string) (region.Params, error) {
	start, err := region.ParseDate(o.start)
	if err != nil {
		return region.Params{}, fmt.Errorf("--start: %w", err)
	}
	end, err := region.ParseDate(o.end)
	if err != nil {
		return region.Params{}, fmt.Errorf("--end: %w", err)
	}

	return region.Params{
		West:           o.west,
		South:          o.south,
		East:           o.east,
		North:          o.north,
		Start:          start,
		End:            end,
		APIKey:         apiKey,
		OutputDir:      cfg.Harvest.OutputDir,
		DownloadAssets: cfg.Harvest.DownloadAssets,
	}, nil
}

// datasetPath is where the finished dataset is written
func datasetPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Harvest.DatasetFile) {
		return cfg.Harvest.DatasetFile
	}
	return filepath.Join(cfg.Harvest.OutputDir, cfg.Harvest.DatasetFile)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(harvestOpts.flagMap(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}
	log := logger.GetLogger()

	apiKey, source, err := resolveAPIKey(cfg, harvestOpts.profile)
	if err != nil {
		ui.PrintError("No API key", err)
		return err
	}

	params, err := harvestOpts.params(cfg, apiKey)
	if err != nil {
		ui.PrintError("Invalid harvest request", err)
		return err
	}
	req, err := region.NewHarvestRequest(params)
	if err != nil {
		ui.PrintError("Invalid harvest request", err)
		return err
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
	if notifications || cfg.Notifications.Desktop {
		sinks = append(sinks, ui.NewNotifier())
	}

	area := req.Root().String()
	opts := harvester.OptionsFromConfig(cfg)
	opts.Logger = log
	clients := harvester.NewClientFactory(cfg, responses, log)

	if !harvestOpts.useTUI {
		ui.PrintInfo("Region", area)
		ui.PrintInfo("API key", source)
	}
	log.WithFields(map[string]interface{}{
		"region":     area,
		"key_source": source,
		"assets":     req.DownloadAssets(),
	}).Info("starting harvest")

	var ds *dataset.Dataset
	if harvestOpts.useTUI {
		ds, err = harvestWithDashboard(ctx, clients, opts, sinks, req)
	} else {
		opts.Observer = notify.Multi{ui.NewProgressDisplay(area, verbose), sinks}
		ds, err = harvester.New(clients, opts).Run(ctx, req)
	}

	switch {
	case errs.Is(err, errs.ErrorTypeCancelled):
		ui.PrintWarning("Harvest halted; no dataset written")
		return nil
	case err != nil:
		log.WithError(err).Error("harvest failed")
		return err
	}

	path := datasetPath(cfg)
	if err := dataset.SaveCSV(path, ds); err != nil {
		ui.PrintError("Failed to write dataset", err)
		return err
	}
	log.WithFields(map[string]interface{}{
		"path":    path,
		"records": ds.Len(),
	}).Info("dataset written")
	ui.PrintSuccess(fmt.Sprintf("Dataset written to %s (%d records)", path, ds.Len()))
	return nil
}

// harvestWithDashboard runs the harvest in the background while the
// dashboard owns the terminal. Quitting the dashboard cancels the harvest.
func harvestWithDashboard(ctx context.Context, clients harvester.ClientFactory, opts harvester.Options, sinks notify.Multi, req region.HarvestRequest) (*dataset.Dataset, error) {
	var h *harvester.Harvester
	dashboard := tui.NewTUI(func() { h.Cancel() }, req.Root().String(), tui.WithContext(ctx))

	opts.Observer = notify.Multi{dashboard.Observer(), sinks}
	h = harvester.New(clients, opts)

	results := h.Start(ctx, req)
	done := make(chan harvester.Result, 1)
	go func() {
		res := <-results
		dashboard.Close()
		done <- res
	}()

	if err := dashboard.Run(); err != nil {
		h.Cancel()
		logger.WithError(err).Warn("dashboard exited with an error")
	}
	res := <-done
	return res.Dataset, res.Err
}

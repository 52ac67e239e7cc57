package harvester

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"flickrharvest/internal/downloader"
	"flickrharvest/pkg/config"
	"flickrharvest/pkg/dataset"
	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/metrics"
	"flickrharvest/pkg/notify"
	"flickrharvest/pkg/region"
	"flickrharvest/pkg/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// errHalted unwinds the worker loop when the cancellation flag is seen
var errHalted = errs.New(errs.ErrorTypeCancelled, 0, "worker halted forcefully")

// AssetFetcher downloads one asset with a single fallback attempt
type AssetFetcher interface {
	FetchWithFallback(ctx context.Context, primary, fallback, name string, cancelled func() bool) string
}

// AssetFactory opens an AssetFetcher writing into outputDir
type AssetFactory func(outputDir string) (AssetFetcher, error)

// Options configures a Harvester. Zero values fall back to the defaults of
// config.DefaultConfig.
type Options struct {
	RunID          string
	Partitioner    *region.Partitioner
	Assets         AssetFactory
	AssetSuffix    string
	FallbackSuffix string
	EnrichOwners   bool
	Observer       notify.Observer
	Logger         logger.Logger
}

// OptionsFromConfig maps the harvest and flickr sections onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Partitioner:    region.NewPartitioner(cfg.MaxPagesPerQuery(), cfg.Harvest.BoxDivisionThreshold),
		Assets:         StorageAssets(cfg.Harvest.ChunkSize, cfg.Flickr.Timeout),
		AssetSuffix:    cfg.Flickr.AssetSuffix,
		FallbackSuffix: cfg.Flickr.FallbackSuffix,
		EnrichOwners:   cfg.Harvest.EnrichOwners,
	}
}

// StorageAssets writes assets through a storage.Manager rooted at the
// request's output directory.
func StorageAssets(chunkSize int, timeout time.Duration) AssetFactory {
	return func(outputDir string) (AssetFetcher, error) {
		store, err := storage.NewManager(outputDir)
		if err != nil {
			return nil, err
		}
		opts := downloader.Options{ChunkSize: chunkSize}
		if timeout > 0 {
			opts.HTTPClient = &http.Client{Timeout: timeout}
		}
		return downloader.NewFetcher(store, opts), nil
	}
}

// Result is what Start delivers once the run ends
type Result struct {
	Dataset *dataset.Dataset
	Err     error
}

// Harvester runs one harvest: it drains a FIFO queue of regions, splitting
// the ones whose result set exceeds the page cap and paginating the rest.
// A Harvester is single use.
type Harvester struct {
	clients     ClientFactory
	partitioner *region.Partitioner
	assets      AssetFactory
	assetSuffix string
	fallback    string
	enrich      bool
	observer    notify.Observer
	logger      logger.Logger
	runID       string

	state  stateBox
	halt   atomic.Bool
	total  int
	ctxErr func() error

	mu   sync.Mutex
	stop context.CancelFunc
}

// New creates a Harvester that obtains its API client from clients
func New(clients ClientFactory, opts Options) *Harvester {
	defaults := config.DefaultConfig()

	h := &Harvester{
		clients:     clients,
		partitioner: opts.Partitioner,
		assets:      opts.Assets,
		assetSuffix: opts.AssetSuffix,
		fallback:    opts.FallbackSuffix,
		enrich:      opts.EnrichOwners,
		observer:    opts.Observer,
		logger:      opts.Logger,
		runID:       opts.RunID,
	}
	if h.partitioner == nil {
		h.partitioner = region.NewPartitioner(defaults.MaxPagesPerQuery(), defaults.Harvest.BoxDivisionThreshold)
	}
	if h.assets == nil {
		h.assets = StorageAssets(defaults.Harvest.ChunkSize, defaults.Flickr.Timeout)
	}
	if h.assetSuffix == "" && h.fallback == "" {
		h.assetSuffix = defaults.Flickr.AssetSuffix
	}
	if h.observer == nil {
		h.observer = notify.Nop{}
	}
	if h.runID == "" {
		h.runID = uuid.NewString()
	}
	if h.logger == nil {
		h.logger = logger.GetLogger()
	}
	h.logger = h.logger.WithField("run_id", h.runID)
	return h
}

// RunID identifies this run in logs and notifications
func (h *Harvester) RunID() string { return h.runID }

// State reports where the run is in its lifecycle
func (h *Harvester) State() State { return h.state.load() }

// Cancel asks the worker to stop at its next poll point and aborts any
// network call, backoff or rate limiter wait in progress. It is safe to call
// from any goroutine, any number of times.
func (h *Harvester) Cancel() {
	if !h.halt.CompareAndSwap(false, true) {
		return
	}
	h.logger.Info("cancellation requested")

	h.mu.Lock()
	stop := h.stop
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Start runs the harvest on its own goroutine. The channel yields exactly
// one Result and is then closed.
func (h *Harvester) Start(ctx context.Context, req region.HarvestRequest) <-chan Result {
	out := make(chan Result, 1)
	var g errgroup.Group
	g.Go(func() error {
		ds, err := h.Run(ctx, req)
		out <- Result{Dataset: ds, Err: err}
		return err
	})
	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}

// Run executes the harvest on the calling goroutine and returns the final
// dataset. A halted or failed run returns a nil dataset; cancellation
// returns a cancelled error, which callers should not treat as a failure.
func (h *Harvester) Run(ctx context.Context, req region.HarvestRequest) (*dataset.Dataset, error) {
	if !h.state.compareAndSwap(StateIdle, StateValidating) {
		return nil, errs.New(errs.ErrorTypeValidation, 0, "harvester already used")
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	h.mu.Lock()
	h.stop = stop
	h.mu.Unlock()
	if h.halt.Load() {
		stop()
	}
	h.ctxErr = ctx.Err
	started := time.Now()
	root := req.Root()

	logger.LogComponentStart(h.logger, "harvester", map[string]interface{}{
		"region":          root.String(),
		"download_assets": req.DownloadAssets(),
		"max_pages":       h.partitioner.MaxPages,
	})
	defer func() {
		logger.LogComponentStop(h.logger, "harvester", h.State().String())
		h.logger.InfoWithFields("harvest ended", map[string]interface{}{
			"state":    h.State().String(),
			"duration": time.Since(started),
		})
	}()

	if !req.Valid() {
		return nil, h.fail(errs.New(errs.ErrorTypeValidation, 0, "harvest request was not validated"))
	}

	client := h.clients(req.APIKey())

	h.message("checking connection to flickr API...")
	if err := client.CheckCredential(ctx); err != nil {
		if h.cancelled() || errs.Is(err, errs.ErrorTypeCancelled) {
			return nil, h.halted()
		}
		return nil, h.fail(err)
	}
	h.message("Connection OK")

	if h.cancelled() {
		return nil, h.halted()
	}

	var assets AssetFetcher
	if req.DownloadAssets() {
		a, err := h.assets(req.OutputDir())
		if err != nil {
			return nil, h.fail(errs.Wrap(errs.ErrorTypeAssetDownload, err, "could not prepare output directory"))
		}
		assets = a
	}

	h.transition(StateRunning)
	records, empty, err := h.walk(ctx, client, root, assets)
	switch {
	case errors.Is(err, errHalted):
		return nil, h.halted()
	case err != nil && (h.cancelled() || errs.Is(err, errs.ErrorTypeCancelled)):
		return nil, h.halted()
	case err != nil:
		return nil, h.fail(err)
	}

	h.transition(StateDraining)
	ds := &dataset.Dataset{Records: []dataset.Record{}}
	if empty {
		h.message("no results")
	} else {
		h.message(fmt.Sprintf("Finished downloading all %d records", h.total))
		ds = h.drain(ctx, client, records)
		if h.cancelled() {
			return nil, h.halted()
		}
	}

	h.transition(StateFinished)
	metrics.HarvestsTotal.WithLabelValues(outcome(empty)).Inc()
	h.emit(notify.Event{Kind: notify.KindFinished, Count: ds.Len(), Dataset: ds})
	return ds, nil
}

// walk drains the work queue. It reports empty when the root region has no
// matches at all.
func (h *Harvester) walk(ctx context.Context, client SearchClient, root region.RegionClock, assets AssetFetcher) ([]dataset.Record, bool, error) {
	queue := []region.RegionClock{root}
	var acc []dataset.Record
	first := true
	defer metrics.QueueDepth.Set(0)

	for len(queue) > 0 {
		if h.cancelled() {
			return nil, false, errHalted
		}
		r := queue[0]
		queue = queue[1:]
		metrics.QueueDepth.Set(float64(len(queue)))

		h.message("Downloading box " + r.String())
		page, err := client.FetchPage(ctx, r, 1)
		if err != nil {
			return nil, false, err
		}

		if first {
			first = false
			if page.Pages == 0 {
				return nil, true, nil
			}
			h.total = page.Total
			h.emit(notify.Event{Kind: notify.KindTotal, Count: page.Total})
			h.message(fmt.Sprintf("downloading all %d records", page.Total))
		} else if page.Pages == 0 {
			h.logger.DebugWithFields("empty region", map[string]interface{}{"region": r.String()})
			continue
		}

		decision := h.partitioner.Decide(r, page.Pages)
		metrics.PartitionsTotal.WithLabelValues(decision.Kind.String()).Inc()

		switch decision.Kind {
		case region.SplitSpatial, region.SplitTemporal:
			logger.LogSplit(h.logger, decision.Kind.String(), r.BBox(), page.Pages)
			if decision.Kind == region.SplitSpatial {
				h.message(fmt.Sprintf("%d pages. dividing spatially...", page.Pages))
			} else {
				h.message(fmt.Sprintf("%d pages. dividing temporally...", page.Pages))
			}
			queue = append(queue, decision.Children...)
			metrics.QueueDepth.Set(float64(len(queue)))
			continue
		}

		if decision.Saturated {
			h.logger.WarnWithFields("region cannot be divided further", map[string]interface{}{
				"region":    r.String(),
				"pages":     page.Pages,
				"max_pages": h.partitioner.MaxPages,
			})
			h.message(fmt.Sprintf("%d pages but the box cannot be divided further; keeping the first %d",
				page.Pages, h.partitioner.MaxPages))
		}

		acc, err = h.paginate(ctx, client, r, page, assets, acc)
		if err != nil {
			return nil, false, err
		}
	}
	return acc, false, nil
}

// paginate appends page and every following page of r to acc
func (h *Harvester) paginate(ctx context.Context, client SearchClient, r region.RegionClock, page *flickr.Page, assets AssetFetcher, acc []dataset.Record) ([]dataset.Record, error) {
	n := 1
	for {
		var err error
		acc, err = h.push(ctx, client, page, assets, acc)
		if err != nil {
			return nil, err
		}

		pages := min(page.Pages, h.partitioner.MaxPages)
		if n >= pages {
			return acc, nil
		}
		if h.cancelled() {
			return nil, errHalted
		}
		n++
		page, err = client.FetchPage(ctx, r, n)
		if err != nil {
			return nil, err
		}
	}
}

// push converts one page into records, downloads their assets when asked,
// appends them and then reports cumulative progress.
func (h *Harvester) push(ctx context.Context, client SearchClient, page *flickr.Page, assets AssetFetcher, acc []dataset.Record) ([]dataset.Record, error) {
	batch := make([]dataset.Record, 0, len(page.Photos))
	for _, p := range page.Photos {
		primary := client.AssetURL(p, h.assetSuffix)
		rec := dataset.FromPhoto(p, primary)
		if assets != nil {
			rec.LocalPath = assets.FetchWithFallback(ctx, primary, client.AssetURL(p, h.fallback), p.ID, h.cancelled)
			if h.cancelled() {
				return nil, errHalted
			}
		}
		batch = append(batch, rec)
	}

	acc = append(acc, batch...)
	metrics.RecordsHarvested.Add(float64(len(batch)))
	h.message(fmt.Sprintf("fetched page %d of %d (%d records)", page.Number, page.Pages, len(batch)))
	h.emit(notify.Event{Kind: notify.KindProgress, Count: len(acc)})
	logger.LogHarvestProgress(h.logger, len(acc), h.total)
	return acc, nil
}

// drain deduplicates and enriches the accumulator into the final dataset
func (h *Harvester) drain(ctx context.Context, client SearchClient, records []dataset.Record) *dataset.Dataset {
	harvested := len(records)
	unique, removed := dataset.Dedupe(records)
	metrics.DuplicatesRemoved.Add(float64(removed))
	h.message(fmt.Sprintf("removed %d duplicate records, %d remain", removed, len(unique)))

	if h.enrich && len(unique) > 0 {
		enricher := &dataset.Enricher{
			Lookup:   client,
			Logger:   h.logger,
			Progress: h.message,
		}
		unique = enricher.Enrich(ctx, unique)
	}

	return &dataset.Dataset{
		Records:           unique,
		Total:             h.total,
		Harvested:         harvested,
		DuplicatesRemoved: removed,
	}
}

func (h *Harvester) cancelled() bool {
	if h.halt.Load() {
		return true
	}
	return h.ctxErr != nil && h.ctxErr() != nil
}

func (h *Harvester) halted() error {
	h.transition(StateHalted)
	metrics.HarvestsTotal.WithLabelValues("halted").Inc()
	h.message("worker halted forcefully")
	h.emit(notify.Event{Kind: notify.KindFinished})
	return errs.New(errs.ErrorTypeCancelled, 0, "harvest halted")
}

func (h *Harvester) fail(err error) error {
	h.transition(StateFailed)
	metrics.HarvestsTotal.WithLabelValues("failed").Inc()
	t := errs.TypeOf(err)
	h.logger.WithError(err).WithFields(map[string]interface{}{
		"error_type": string(t),
		"fatal":      errs.IsFatal(t),
		"retried":    errs.IsRetryable(t),
	}).Error("harvest failed")
	h.emit(notify.Event{Kind: notify.KindError, Text: errorText(err)})
	h.emit(notify.Event{Kind: notify.KindFinished})
	return err
}

func (h *Harvester) transition(next State) {
	prev := h.state.load()
	h.state.store(next)
	h.logger.DebugWithFields("state transition", map[string]interface{}{
		"from": prev.String(),
		"to":   next.String(),
	})
}

func (h *Harvester) message(text string) {
	h.emit(notify.Event{Kind: notify.KindMessage, Text: text})
}

func (h *Harvester) emit(e notify.Event) {
	e.RunID = h.runID
	e.Time = time.Now()
	h.observer.Notify(e)
}

// errorText is the line shown to the user for a fatal error
func errorText(err error) string {
	var e *errs.Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}
	switch e.Type {
	case errs.ErrorTypeCredentialInvalid:
		return "Error: invalid API key"
	case errs.ErrorTypeAPIQueryFailed:
		return e.Message
	default:
		return "Error: " + err.Error()
	}
}

func outcome(empty bool) string {
	if empty {
		return "empty"
	}
	return "finished"
}

package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/metrics"
	"flickrharvest/pkg/ratelimit"
	"flickrharvest/pkg/storage"
)

// DefaultChunkSize is the read size of the streaming loop
const DefaultChunkSize = 4096

// AssetStore is where fetched assets land
type AssetStore interface {
	Exists(name string) bool
	PathFor(name string) string
	Create(name string) (*storage.PendingFile, error)
}

// Options configures a Fetcher
type Options struct {
	HTTPClient *http.Client
	ChunkSize  int
	Limiter    ratelimit.Limiter
	Logger     logger.Logger
}

// Fetcher streams asset files to an AssetStore, one at a time
type Fetcher struct {
	httpClient *http.Client
	store      AssetStore
	chunkSize  int
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewFetcher creates a fetcher writing into store
func NewFetcher(store AssetStore, opts Options) *Fetcher {
	f := &Fetcher{
		httpClient: opts.HTTPClient,
		store:      store,
		chunkSize:  opts.ChunkSize,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if f.chunkSize <= 0 {
		f.chunkSize = DefaultChunkSize
	}
	if f.limiter == nil {
		f.limiter = ratelimit.Unlimited{}
	}
	if f.logger == nil {
		f.logger = logger.GetLogger()
	}
	return f
}

// Fetch downloads url into the asset called name and returns its path.
// cancelled is polled before every chunk; when it reports true the partial
// file is discarded and a cancelled error is returned.
func (f *Fetcher) Fetch(ctx context.Context, url, name string, cancelled func() bool) (string, error) {
	if f.store.Exists(name) {
		return f.store.PathFor(name), nil
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return "", errs.Wrap(errs.ErrorTypeCancelled, err, "waiting for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeAssetDownload, err, "failed to create request")
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeAssetDownload, err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.New(errs.ErrorTypeAssetDownload, resp.StatusCode, fmt.Sprintf("unexpected status fetching %s", url))
	}

	out, err := f.store.Create(name)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeAssetDownload, err, "could not open asset file")
	}

	buf := make([]byte, f.chunkSize)
	for {
		if cancelled != nil && cancelled() {
			out.Abort()
			return "", errs.New(errs.ErrorTypeCancelled, 0, "download halted")
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				out.Abort()
				return "", errs.Wrap(errs.ErrorTypeAssetDownload, err, "could not write asset file")
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Abort()
			return "", errs.Wrap(errs.ErrorTypeAssetDownload, readErr, "download interrupted")
		}
	}

	path, err := out.Commit()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeAssetDownload, err, "could not save asset file")
	}
	return path, nil
}

// FetchWithFallback tries primary, then fallback exactly once. It returns
// the stored path, or "" when both fail or the download was halted.
func (f *Fetcher) FetchWithFallback(ctx context.Context, primary, fallback, name string, cancelled func() bool) string {
	path, err := f.Fetch(ctx, primary, name, cancelled)
	if err == nil {
		metrics.AssetDownloads.WithLabelValues("primary", "ok").Inc()
		return path
	}
	metrics.AssetDownloads.WithLabelValues("primary", "failed").Inc()
	if errs.Is(err, errs.ErrorTypeCancelled) {
		return ""
	}

	log := f.logger.WithFields(map[string]interface{}{"asset": name, "url": primary})
	if fallback == "" || fallback == primary {
		log.WithError(err).Warn("asset download failed")
		return ""
	}
	log.WithError(err).Debug("primary asset failed, trying fallback")

	path, err = f.Fetch(ctx, fallback, name, cancelled)
	if err != nil {
		metrics.AssetDownloads.WithLabelValues("fallback", "failed").Inc()
		if !errs.Is(err, errs.ErrorTypeCancelled) {
			log.WithError(err).WithField("fallback", fallback).Warn("asset download failed")
		}
		return ""
	}
	metrics.AssetDownloads.WithLabelValues("fallback", "ok").Inc()
	return path
}

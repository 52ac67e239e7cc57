package harvester

import (
	"context"

	"flickrharvest/pkg/config"
	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/metrics"
	"flickrharvest/pkg/ratelimit"
	"flickrharvest/pkg/region"
	"flickrharvest/pkg/retry"
)

// SearchClient is everything the worker needs from the remote API
type SearchClient interface {
	FetchPage(ctx context.Context, r region.RegionClock, page int) (*flickr.Page, error)
	CheckCredential(ctx context.Context) error
	LookupOwner(ctx context.Context, ownerID string) (flickr.OwnerProfile, error)
	AssetURL(p flickr.Photo, suffix string) string
}

// ClientFactory builds a SearchClient for one API key
type ClientFactory func(apiKey string) SearchClient

// RetryingSearcher retries transient failures of the wrapped client. Errors
// that are not retryable, and errors that outlive the attempt cap, are
// returned unchanged in type.
type RetryingSearcher struct {
	next SearchClient
	cfg  *retry.Config
}

// NewRetryingSearcher wraps next; a nil cfg uses retry.DefaultConfig
func NewRetryingSearcher(next SearchClient, cfg *retry.Config) *RetryingSearcher {
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}
	return &RetryingSearcher{next: next, cfg: cfg}
}

func (s *RetryingSearcher) FetchPage(ctx context.Context, r region.RegionClock, page int) (*flickr.Page, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (*flickr.Page, error) {
		return s.next.FetchPage(ctx, r, page)
	}, s.cfg)
}

func (s *RetryingSearcher) CheckCredential(ctx context.Context) error {
	return retry.Do(ctx, s.next.CheckCredential, s.cfg)
}

func (s *RetryingSearcher) LookupOwner(ctx context.Context, ownerID string) (flickr.OwnerProfile, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) (flickr.OwnerProfile, error) {
		return s.next.LookupOwner(ctx, ownerID)
	}, s.cfg)
}

func (s *RetryingSearcher) AssetURL(p flickr.Photo, suffix string) string {
	return s.next.AssetURL(p, suffix)
}

// NewClientFactory returns a factory that builds rate limited, optionally
// cached, retrying clients from cfg. All clients it builds share one limiter.
func NewClientFactory(cfg *config.Config, cache flickr.ResponseCache, log logger.Logger) ClientFactory {
	if log == nil {
		log = logger.GetLogger()
	}
	limiter := ratelimit.ForAPI(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RequestsPerHour)
	retryCfg := retry.FromSettings(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay, log)

	return func(apiKey string) SearchClient {
		opts := flickr.OptionsFromConfig(&cfg.Flickr)
		opts.Limiter = limiter
		opts.Cache = cache
		opts.OnCall = metrics.ObserveQuery
		opts.Logger = log
		return NewRetryingSearcher(flickr.NewClient(apiKey, opts), retryCfg)
	}
}

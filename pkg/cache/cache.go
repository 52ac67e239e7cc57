// Package cache holds remote API responses so repeated queries over the same
// region and window are answered locally. It stores raw response bodies only;
// harvested datasets are never persisted here.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"flickrharvest/pkg/config"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/metrics"
)

// Store is a response cache. It satisfies flickr.ResponseCache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, body []byte)
	Stats() Stats
	Close(ctx context.Context) error
}

// Stats counts lookups since the store was opened
type Stats struct {
	Hits   int64
	Misses int64
}

type counters struct {
	backend string
	hits    atomic.Int64
	misses  atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	metrics.ObserveCache(c.backend, hit)
}

func (c *counters) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Open builds the store selected by cfg.Backend. It returns nil for "none".
// A Mongo store that cannot connect is returned disabled rather than failing.
func Open(ctx context.Context, cfg *config.CacheConfig, log logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(cfg.ShelfLife), nil
	case "mongo":
		return NewMongoCache(ctx, MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
			ShelfLife:  cfg.ShelfLife,
			Logger:     log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

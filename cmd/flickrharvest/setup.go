package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flickrharvest/pkg/auth"
	"flickrharvest/pkg/cache"
	"flickrharvest/pkg/config"
	"flickrharvest/pkg/flickr"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/notify"
)

// loadConfig loads configuration and initializes the global logger
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveAPIKey picks the key for a run: a named profile, then the config
// or environment, then the default stored profile.
func resolveAPIKey(cfg *config.Config, profile string) (key, source string, err error) {
	if profile == "" && cfg.Flickr.APIKey != "" {
		return cfg.Flickr.APIKey, "configuration", nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return "", "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var p *auth.Profile
	if profile != "" {
		p, err = manager.Retrieve(profile)
	} else {
		p, err = manager.RetrieveDefault()
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return "", "", fmt.Errorf("no Flickr API key found; run 'flickrharvest auth login' or set %s", auth.EnvAPIKey)
		}
		return "", "", err
	}
	return p.APIKey, "profile " + p.Name, nil
}

// openCache opens the configured response cache. The returned cache is nil
// when caching is disabled; close is always safe to call.
func openCache(ctx context.Context, cfg *config.Config, log logger.Logger) (flickr.ResponseCache, func(), error) {
	store, err := cache.Open(ctx, &cfg.Cache, log)
	if err != nil {
		return nil, func() {}, err
	}
	if store == nil {
		return nil, func() {}, nil
	}

	closeFn := func() {
		stats := store.Stats()
		log.InfoWithFields("response cache closed", map[string]interface{}{
			"backend": cfg.Cache.Backend,
			"hits":    stats.Hits,
			"misses":  stats.Misses,
		})
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("failed to close response cache")
		}
	}
	return store, closeFn, nil
}

// openSinks connects the notification sinks named in the configuration.
// A sink that cannot be reached is logged and skipped.
func openSinks(cfg *config.Config, log logger.Logger) (notify.Multi, func()) {
	var sinks notify.Multi
	var closers []func()

	if url := cfg.Notifications.NATSURL; url != "" {
		nats, err := notify.NewNATSObserver(url, cfg.Notifications.SubjectPrefix, log)
		if err != nil {
			log.WithError(err).WithField("url", url).Warn("NATS unavailable; events will not be published")
		} else {
			sinks = append(sinks, nats)
			closers = append(closers, nats.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

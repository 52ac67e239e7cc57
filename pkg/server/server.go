// Package server exposes harvests over HTTP: start, cancel, poll status and
// fetch the finished dataset. Each run is an independent Harvester.
package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"flickrharvest/pkg/config"
	"flickrharvest/pkg/harvester"
	"flickrharvest/pkg/logger"
	"flickrharvest/pkg/metrics"
	"flickrharvest/pkg/notify"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Factory builds the harvester for one run. obs must receive every event
// the harvester emits.
type Factory func(runID string, obs notify.Observer) *harvester.Harvester

// NewFactory builds harvesters from cfg. Every event is also passed to
// extra, which may be nil.
func NewFactory(cfg *config.Config, clients harvester.ClientFactory, extra notify.Observer, log logger.Logger) Factory {
	return func(runID string, obs notify.Observer) *harvester.Harvester {
		opts := harvester.OptionsFromConfig(cfg)
		opts.RunID = runID
		opts.Observer = notify.Multi{obs, extra}
		opts.Logger = log
		return harvester.New(clients, opts)
	}
}

// Server holds the runs started through the API
type Server struct {
	cfg     *config.Config
	factory Factory
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	runs map[string]*run
}

// New creates a server. Runs started through it live until Shutdown.
func New(cfg *config.Config, factory Factory, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		factory: factory,
		logger:  log.WithField("component", "server"),
		ctx:     ctx,
		cancel:  cancel,
		runs:    make(map[string]*run),
	}
}

// Router wires every route onto a fresh gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/harvests", s.startHarvest)
		api.GET("/harvests", s.listHarvests)
		api.GET("/harvests/:id", s.getHarvest)
		api.DELETE("/harvests/:id", s.cancelHarvest)
		api.GET("/harvests/:id/records", s.getRecords)
	}
	return r
}

// ListenAndServe serves on cfg.Server.Addr until ctx is done, then cancels
// every run and shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.LogComponentStart(s.logger, "server", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	logger.LogComponentStop(s.logger, "server", "shutdown")
	return err
}

// Shutdown cancels every active run
func (s *Server) Shutdown() {
	s.mu.RLock()
	for _, r := range s.runs {
		r.harvester.Cancel()
	}
	s.mu.RUnlock()
	s.cancel()
}

func (s *Server) add(r *run) {
	s.mu.Lock()
	s.runs[r.id] = r
	s.mu.Unlock()
}

func (s *Server) get(id string) (*run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}

func (s *Server) list() []*run {
	s.mu.RLock()
	out := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].started.Before(out[j].started) })
	return out
}

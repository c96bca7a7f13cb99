// Package server exposes the licensing dashboard and the raw snapshot
// endpoints over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dsworkflows/chidata/pkg/cache"
	"github.com/dsworkflows/chidata/pkg/dataset"
	"github.com/dsworkflows/chidata/pkg/logging"
	"github.com/dsworkflows/chidata/pkg/metrics"
	"github.com/dsworkflows/chidata/pkg/predict"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Snapshots serves raw portal tables kept in the database.
type Snapshots interface {
	Query(ctx context.Context, id, order string, limit int) (*table.Table, error)
	Distinct(ctx context.Context, id, column string) ([]string, error)
	Ping(ctx context.Context) error
}

// TableCache memoizes fetched tables.
type TableCache interface {
	LoadOrFetch(ctx context.Context, key cache.Key, ttl time.Duration, fetch cache.FetchFunc) (*table.Table, error)
	Invalidate(ctx context.Context, key cache.Key) error
}

// FetchFunc retrieves up to n validated business licenses.
type FetchFunc func(ctx context.Context, n int) (*table.Table, error)

// Config holds server configuration.
type Config struct {
	Addr            string
	LicenseCount    int
	CacheTTL        time.Duration
	PageSize        int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		LicenseCount:    1000,
		CacheTTL:        15 * time.Minute,
		PageSize:        10,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wires the HTTP routes to their dependencies.
type Server struct {
	config    Config
	fetch     FetchFunc
	cache     TableCache
	store     Snapshots
	predictor predict.Predictor
	engine    *gin.Engine
	logger    zerolog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithCache memoizes the license snapshot in c.
func WithCache(c TableCache) Option {
	return func(s *Server) { s.cache = c }
}

// WithStore enables the /resource endpoint.
func WithStore(st Snapshots) Option {
	return func(s *Server) { s.store = st }
}

// WithPredictor adds a risk column to dashboard pages.
func WithPredictor(p predict.Predictor) Option {
	return func(s *Server) { s.predictor = p }
}

// New creates a server. fetch is required.
func New(cfg Config, fetch FetchFunc, opts ...Option) (*Server, error) {
	if fetch == nil {
		return nil, errors.New("fetch function is required")
	}
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.LicenseCount <= 0 {
		cfg.LicenseCount = def.LicenseCount
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		config: cfg,
		fetch:  fetch,
		cache:  passthrough{},
		logger: logging.NewLogger("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/resource/:id", s.resource)
	r.GET("/resource/:id/values/:column", s.values)

	r.GET("/licenses", s.licenses)
	r.POST("/licenses/refresh", s.refresh)

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) licenseKey() cache.Key {
	return cache.Key{Dataset: dataset.BusinessLicense.ID, Count: s.config.LicenseCount}
}

// snapshot returns the cached license table, fetching it on a miss.
func (s *Server) snapshot(ctx context.Context) (*table.Table, error) {
	return s.cache.LoadOrFetch(ctx, s.licenseKey(), s.config.CacheTTL, func(ctx context.Context) (*table.Table, error) {
		start := time.Now()
		t, err := s.fetch(ctx, s.config.LicenseCount)
		if err != nil {
			s.logger.Error().Err(err).Int("n", s.config.LicenseCount).Msg("License fetch failed")
			return nil, err
		}
		s.logger.Info().
			Int("records", t.Len()).
			Dur("duration", time.Since(start)).
			Msg("License snapshot fetched")
		return t, nil
	})
}

// passthrough fetches on every call.
type passthrough struct{}

func (passthrough) LoadOrFetch(ctx context.Context, _ cache.Key, _ time.Duration, fetch cache.FetchFunc) (*table.Table, error) {
	return fetch(ctx)
}

func (passthrough) Invalidate(context.Context, cache.Key) error { return nil }

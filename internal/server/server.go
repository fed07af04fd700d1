// Package server exposes the ranking engine over HTTP with gin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/logging"
	"github.com/ahrav/go-vidrank/internal/ports"
)

// Ranker is the part of the engine the API drives.
type Ranker interface {
	Run(ctx context.Context, runID string, locators []string) (*domain.RunReport, error)
	Fetch(ctx context.Context, locator string) (*domain.Item, error)
	AnalyzeOne(ctx context.Context, d domain.Dimension, item domain.Item) (domain.AnalyzerResult, *domain.Failure, error)
}

// RunReader reads persisted runs.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
}

// Options configures a Server. Ranker is required; Runs and Metrics may be
// nil, in which case their routes answer 404.
type Options struct {
	Ranker   Ranker
	Runs     RunReader
	Metrics  http.Handler
	Logger   *slog.Logger
	Version  string
	MaxItems int

	// NewRunID overrides run id generation in tests.
	NewRunID func() string
}

// Server holds the gin router and its dependencies.
type Server struct {
	router   *gin.Engine
	ranker   Ranker
	runs     RunReader
	logger   *slog.Logger
	version  string
	maxItems int
	newRunID func() string
}

// New builds the router with every route registered.
func New(opts Options) (*Server, error) {
	if opts.Ranker == nil {
		return nil, errors.New("server: ranker is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), AccessLog(opts.Logger), Recovery(opts.Logger))

	s := &Server{
		router:   r,
		ranker:   opts.Ranker,
		runs:     opts.Runs,
		logger:   opts.Logger,
		version:  opts.Version,
		maxItems: opts.MaxItems,
		newRunID: opts.NewRunID,
	}

	r.GET("/health", s.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	api := r.Group("/api/v1")
	api.POST("/analyze", s.analyze)
	api.GET("/runs/:id", s.getRun)
	api.POST("/analyzers/:dimension/test", s.testAnalyzer)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	return s, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr, "version", s.version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

var _ RunReader = (ports.RunStore)(nil)

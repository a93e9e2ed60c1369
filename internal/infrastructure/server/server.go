// Package server wires the trace engine, middleware, and API surface
// into a runnable HTTP server.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/ereojs/devtrace/internal/api/http"
	"github.com/ereojs/devtrace/internal/api/middleware"
	"github.com/ereojs/devtrace/internal/api/ws"
	"github.com/ereojs/devtrace/internal/infrastructure/config"
	"github.com/ereojs/devtrace/internal/infrastructure/logging"
	"github.com/ereojs/devtrace/internal/infrastructure/monitoring"
	"github.com/ereojs/devtrace/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// untracedPaths are the service's own endpoints. Tracing them would
// mint a trace for every poll of the trace API.
var untracedPaths = []string{"/", "/health", "/traces", "/stream", "/metrics"}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router        *gin.Engine
	tracer        *tracing.Tracer
	logger        *logging.Logger
	config        *config.Config
	metrics       *monitoring.Metrics
	httpServer    *http.Server
	detachMetrics func()
}

// New creates a server instance from configuration.
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	logger.Info("Initializing devtrace server",
		zap.String("port", cfg.Server.Port),
		zap.Int("max_traces", cfg.Tracing.MaxTraces),
		zap.Int("max_spans_per_trace", cfg.Tracing.MaxSpansPerTrace),
		zap.Duration("min_duration", cfg.Tracing.MinDuration),
	)

	metrics := monitoring.NewMetrics(nil)

	tracer := tracing.New(logger.Logger, tracing.Config{
		MaxTraces:        cfg.Tracing.MaxTraces,
		MaxSpansPerTrace: cfg.Tracing.MaxSpansPerTrace,
		MinDuration:      cfg.Tracing.MinDuration,
	})
	detachMetrics := tracer.Subscribe(metrics.Observer(tracer))

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Trace(tracer, middleware.TraceConfig{SkipPaths: untracedPaths}))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(tracer, logger.Logger, metrics)
	wsHandler := ws.NewHandler(tracer, logger.Logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Trace API
	router.GET("/traces", handlers.ListTraces)
	router.GET("/traces/:id", handlers.GetTrace)
	router.POST("/traces/:id/spans", handlers.IngestSpans)

	// Live event stream
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", metrics.Handler())

	logger.Info("Server initialized successfully")

	return &Server{
		router:        router,
		tracer:        tracer,
		logger:        logger,
		config:        cfg,
		metrics:       metrics,
		detachMetrics: detachMetrics,
	}, nil
}

// Tracer exposes the engine, so callers embedding the server can open
// spans of their own.
func (s *Server) Tracer() *tracing.Tracer {
	return s.tracer
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.detachMetrics()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down HTTP server", zap.Error(err))
			return err
		}
	}

	s.logger.Sync()
	return nil
}

// Package api exposes the genotype interpreter over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/events"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/middleware"
	"github.com/genotype-insight-server/internal/service"
)

const defaultMaxUploadBytes = 10 << 20

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	interpreter   *service.CachedInterpreter
	history       history.Store
	publisher     events.Publisher
	limiter       *middleware.RateLimiter
	router        *gin.Engine
	server        *http.Server
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server)

// WithHistory stores every analysis in store.
func WithHistory(store history.Store) ServerOption {
	return func(s *Server) {
		s.history = store
	}
}

// WithPublisher emits an event after every analysis.
func WithPublisher(publisher events.Publisher) ServerOption {
	return func(s *Server) {
		s.publisher = publisher
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, interpreter *service.CachedInterpreter, opts ...ServerOption) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		configManager: configManager,
		logger:        logger,
		interpreter:   interpreter,
		publisher:     events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.RateLimit.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		router.Use(s.limiter.Middleware())
	}
	router.MaxMultipartMemory = s.maxUploadBytes()

	s.router = router
	s.setupRoutes()

	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.limiter != nil {
		go s.sweepRateLimiter(ctx)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) sweepRateLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Cleanup(); n > 0 {
				s.logger.WithField("clients", n).Debug("Evicted idle rate limit clients")
			}
		}
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	timeout := middleware.RequestTimeout(s.configManager.GetServerConfig().RequestTimeout)

	s.router.GET("/health", timeout, s.handleHealth)

	// Route kept from the original single-endpoint service
	s.router.POST("/api/analyze-genome", timeout, s.handleAnalyze)

	v1 := s.router.Group("/api/v1")
	{
		// Long-lived connection, bounded by its own read deadline.
		v1.GET("/genome/stream", s.handleStream)

		bounded := v1.Group("", timeout)
		bounded.POST("/genome/analyze", s.handleAnalyze)
		bounded.GET("/variants", s.handleListVariants)
		bounded.GET("/variants/:id", s.handleGetVariant)

		if s.history != nil {
			bounded.GET("/analyses", s.handleListAnalyses)
			bounded.GET("/analyses/export", s.handleExportAnalyses)
			bounded.GET("/analyses/:id", s.handleGetAnalysis)
			bounded.DELETE("/analyses/:id", s.handleDeleteAnalysis)
		}
	}
}

func (s *Server) maxUploadBytes() int64 {
	if limit := s.configManager.GetConfig().Upload.MaxBytes; limit > 0 {
		return limit
	}
	return defaultMaxUploadBytes
}

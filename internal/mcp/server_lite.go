// Package mcp exposes the genotype interpreter as Model Context Protocol tools.
// The lite server needs no external services: it uses an in-memory result cache and
// SQLite for analysis history.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/cache"
	litecfg "github.com/genotype-insight-server/internal/config"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/logging"
	"github.com/genotype-insight-server/internal/registry"
	"github.com/genotype-insight-server/internal/service"
)

const (
	serverName    = "genotype-insight-server-lite"
	serverVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config       *litecfg.LiteConfig
	mcpServer    *mcp.Server
	registry     *registry.Registry
	interpreter  *service.CachedInterpreter
	historyStore history.Store
	cache        *cache.MemoryCache
	logger       *logrus.Logger
	httpServer   *http.Server
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithHistoryStore sets a custom history store.
func WithHistoryStore(store history.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.historyStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithRegistry serves reg instead of loading the configured reference table.
func WithRegistry(reg *registry.Registry) LiteServerOption {
	return func(s *LiteServer) error {
		if reg == nil {
			return errors.New("registry is nil")
		}
		s.registry = reg
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	// stdout carries the stdio transport, so logs go to stderr
	server := &LiteServer{
		config: cfg,
		logger: logging.NewStderr(cfg.LogLevel, cfg.LogFormat),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.registry == nil {
		reg, err := registry.Load(cfg.ReferencePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load variant reference: %w", err)
		}
		server.registry = reg
	}

	if server.historyStore == nil {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create history store: %w", err)
		}
		server.historyStore = store
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	inner := service.NewInterpreter(server.logger, server.registry, nil, service.WithWorkers(cfg.Workers))
	server.interpreter = service.NewCachedInterpreter(server.logger, inner, server.cache)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()
	server.registerResources()
	server.registerPrompts()

	server.logger.WithFields(logrus.Fields{
		"reference_source": server.registry.Source(),
		"variants":         server.registry.Len(),
		"fingerprint":      server.registry.Fingerprint(),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// MCPServer returns the underlying SDK server.
func (s *LiteServer) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Start runs the configured transport until ctx is cancelled.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.WithField("transport_type", s.config.Transport).Info("Starting genotype MCP server (Lite)...")

	switch s.config.Transport {
	case "", "stdio":
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case "http":
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", s.config.Transport)
	}
}

func (s *LiteServer) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("MCP HTTP transport listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.historyStore != nil {
		if err := s.historyStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close history store")
			return err
		}
	}
	return nil
}

// GetHistoryStore returns the history store for external access.
func (s *LiteServer) GetHistoryStore() history.Store {
	return s.historyStore
}

// GetCache returns the memory cache for external access.
func (s *LiteServer) GetCache() *cache.MemoryCache {
	return s.cache
}

// Package config provides configuration management for the genotype interpretation
// services. This file contains the lightweight configuration for standalone operation
// (MCP server and CLI).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the history database

	// Reference table; empty means the embedded table
	ReferencePath string

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Engine
	Workers int // Goroutines used for large batches

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".genotype-insight")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Transport:     "stdio",
		HTTPPort:      8080,
		Workers:       4,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables, after merging any
// variables found in a local .env file. Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	return LoadLiteConfigFrom(".env")
}

// LoadLiteConfigFrom is LoadLiteConfig with explicit dotenv files. Missing files are ignored
// and variables already present in the environment win.
func LoadLiteConfigFrom(envFiles ...string) *LiteConfig {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	cfg := DefaultLiteConfig()

	if v := os.Getenv("GENOTYPE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.ReferencePath = os.Getenv("GENOTYPE_REFERENCE_PATH")

	// Cache settings
	if v := os.Getenv("GENOTYPE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("GENOTYPE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Transport
	if v := os.Getenv("GENOTYPE_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("GENOTYPE_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("GENOTYPE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}

	// Logging
	if v := os.Getenv("GENOTYPE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GENOTYPE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// HistoryDBPath returns the path to the analysis history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

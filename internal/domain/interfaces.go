package domain

import (
	"context"
)

// ReferenceRegistry is the read-only variant reference table.
type ReferenceRegistry interface {
	Lookup(variantID string) (VariantRecord, bool)
	IDs() []string
	Len() int
	Fingerprint() string
}

// GenotypeInterpreter turns raw genotype text into an ordered batch result.
type GenotypeInterpreter interface {
	InterpretBatch(raw string) *BatchResult
}

// ResultCache stores batch results keyed by content. A miss is (nil, false, nil).
type ResultCache interface {
	Get(ctx context.Context, key string) (*BatchResult, bool, error)
	Set(ctx context.Context, key string, result *BatchResult) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}

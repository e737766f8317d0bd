package domain

import (
	"time"
)

// Reference table sources
const (
	ReferenceSourceEmbedded = "embedded"
	ReferenceSourceFile     = "file"
	ReferenceSourceDatabase = "database"
)

// History drivers
const (
	HistoryDriverNone     = "none"
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverPostgres = "postgres"
)

// Config represents the main application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	Reference   ReferenceConfig `mapstructure:"reference"`
	History     HistoryConfig   `mapstructure:"history"`
	Events      EventsConfig    `mapstructure:"events"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Upload      UploadConfig    `mapstructure:"upload"`
	Engine      EngineConfig    `mapstructure:"engine"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	RunMigrations   bool          `mapstructure:"run_migrations"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxItems    int           `mapstructure:"max_items"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	RedisURL    string        `mapstructure:"redis_url"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// ReferenceConfig selects where the variant reference table comes from
type ReferenceConfig struct {
	Source string `mapstructure:"source"` // "embedded", "file", "database"
	Path   string `mapstructure:"path"`
}

// HistoryConfig selects the analysis history backend
type HistoryConfig struct {
	Driver string `mapstructure:"driver"` // "none", "sqlite", "postgres"
	DSN    string `mapstructure:"dsn"`
}

// EventsConfig represents analysis event publishing configuration
type EventsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	KafkaBrokers []string      `mapstructure:"kafka_brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RateLimitConfig represents per-client request rate limiting
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// UploadConfig bounds accepted genotype uploads
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// EngineConfig tunes batch interpretation
type EngineConfig struct {
	Workers           int `mapstructure:"workers"`
	ParallelThreshold int `mapstructure:"parallel_threshold"`
}

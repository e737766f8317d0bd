package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/api"
	"github.com/genotype-insight-server/internal/cache"
	"github.com/genotype-insight-server/internal/config"
	"github.com/genotype-insight-server/internal/database"
	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/events"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/logging"
	"github.com/genotype-insight-server/internal/registry"
	"github.com/genotype-insight-server/internal/repository"
	"github.com/genotype-insight-server/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()

	var db *database.DB
	if needsDatabase(cfg) {
		conn, err := openDatabase(ctx, configManager, logger)
		if err != nil {
			return err
		}
		db = conn
		defer db.Close()
	}

	reg, err := loadReference(ctx, cfg.Reference, db, logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"reference_source": reg.Source(),
		"variants":         reg.Len(),
		"fingerprint":      reg.Fingerprint(),
	}).Info("Variant reference loaded")

	resultCache, closeCache := buildCache(cfg.Cache, logger)
	defer closeCache()

	stratifier := service.StratifierFromSpecs(logger, reg.RiskRules())
	inner := service.NewInterpreter(logger, reg, stratifier,
		service.WithWorkers(cfg.Engine.Workers),
		service.WithParallelThreshold(cfg.Engine.ParallelThreshold),
	)
	interpreter := service.NewCachedInterpreter(logger, inner, resultCache)

	var opts []api.ServerOption

	store, err := history.Open(cfg.History, configManager.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to open analysis history: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, api.WithHistory(store))
		logger.WithField("driver", cfg.History.Driver).Info("Analysis history enabled")
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewKafkaPublisher(cfg.Events, logger)
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		defer publisher.Close()
		opts = append(opts, api.WithPublisher(publisher))
	}

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Environment,
	}).Info("Starting genotype insight server")

	server := api.NewServer(configManager, logger, interpreter, opts...)
	return server.Start(ctx)
}

func needsDatabase(cfg *domain.Config) bool {
	return cfg.Reference.Source == domain.ReferenceSourceDatabase || cfg.Database.RunMigrations
}

func openDatabase(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (*database.DB, error) {
	dbCfg := configManager.GetDatabaseConfig()

	if dbCfg.RunMigrations {
		if err := database.ApplyMigrations(configManager.GetDatabaseURL(), dbCfg.MigrationsPath, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(*dbCfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// loadReference builds the registry from the configured source. An empty database table is
// seeded with the embedded reference.
func loadReference(ctx context.Context, cfg domain.ReferenceConfig, db *database.DB, logger *logrus.Logger) (*registry.Registry, error) {
	switch cfg.Source {
	case "", domain.ReferenceSourceEmbedded:
		return registry.Default()
	case domain.ReferenceSourceFile:
		return registry.Load(cfg.Path)
	case domain.ReferenceSourceDatabase:
		repo := repository.NewVariantReferenceRepository(db.Pool, logger)
		reg, err := repo.LoadRegistry(ctx)
		if !errors.Is(err, domain.ErrEmptyReference) {
			return reg, err
		}

		logger.Warn("Variant reference table is empty, seeding the embedded reference")
		seed, err := registry.Default()
		if err != nil {
			return nil, err
		}
		if err := repo.Seed(ctx, seed); err != nil {
			return nil, fmt.Errorf("failed to seed variant reference: %w", err)
		}
		return repo.LoadRegistry(ctx)
	default:
		return nil, fmt.Errorf("unknown reference source: %s", cfg.Source)
	}
}

// buildCache layers an in-process LRU over Redis when a Redis URL is configured. Redis
// being unreachable at startup downgrades to the in-process cache.
func buildCache(cfg domain.CacheConfig, logger *logrus.Logger) (domain.ResultCache, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}

	memory := cache.NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL)
	if cfg.RedisURL == "" {
		return memory, func() {}
	}

	redisCache, err := cache.NewRedisCache(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-process result cache only")
		return memory, func() {}
	}
	return cache.NewTieredCache(memory, redisCache), func() {
		if err := redisCache.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis cache")
		}
	}
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/genotype-insight-server/internal/domain"
)

// cachedResult is the JSON envelope stored in Redis.
type cachedResult struct {
	Result   *domain.BatchResult `json:"result"`
	CachedAt time.Time           `json:"cached_at"`
}

// RedisCache stores results in Redis as JSON. Calls go through a circuit breaker; while the
// breaker is open every lookup is a silent miss so Redis outages never fail interpretation.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewRedisCache connects to the Redis instance in config.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-result-cache",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{
		client:  client,
		ttl:     ttl,
		breaker: breaker,
		logger:  logger,
	}
}

// Get implements domain.ResultCache.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.BatchResult, bool, error) {
	val, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return raw, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	raw, _ := val.([]byte)
	if raw == nil {
		return nil, false, nil
	}

	var cached cachedResult
	if err := json.Unmarshal(raw, &cached); err != nil || cached.Result == nil {
		// Remove corrupted cache entry
		c.client.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Result, true, nil
}

// Set implements domain.ResultCache.
func (c *RedisCache) Set(ctx context.Context, key string, result *domain.BatchResult) error {
	payload, err := json.Marshal(cachedResult{Result: result, CachedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, payload, c.ttl).Err()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// State reports the circuit breaker state.
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}

// Ping checks connectivity, bypassing the breaker.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ domain.ResultCache = (*RedisCache)(nil)

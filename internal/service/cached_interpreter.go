package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
)

// CachedInterpreter memoises batch results. Interpretation is a pure function of the
// reference table and the raw text, so the key combines the registry fingerprint with a
// digest of the input.
type CachedInterpreter struct {
	logger *logrus.Logger
	inner  *Interpreter
	cache  domain.ResultCache
}

// NewCachedInterpreter wraps inner with cache. A nil cache disables caching.
func NewCachedInterpreter(logger *logrus.Logger, inner *Interpreter, cache domain.ResultCache) *CachedInterpreter {
	return &CachedInterpreter{logger: logger, inner: inner, cache: cache}
}

// CacheKey returns the cache key for raw interpreted against the table with fingerprint.
func CacheKey(fingerprint, raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return "genotype:" + fingerprint + ":" + hex.EncodeToString(sum[:])
}

// Interpreter returns the wrapped interpreter.
func (c *CachedInterpreter) Interpreter() *Interpreter {
	return c.inner
}

// InterpretBatch implements domain.GenotypeInterpreter.
func (c *CachedInterpreter) InterpretBatch(raw string) *domain.BatchResult {
	return c.InterpretBatchContext(context.Background(), raw)
}

// InterpretBatchContext consults the cache before interpreting. Cache failures are logged
// and treated as misses.
func (c *CachedInterpreter) InterpretBatchContext(ctx context.Context, raw string) *domain.BatchResult {
	if c.cache == nil {
		return c.inner.InterpretBatch(raw)
	}

	key := CacheKey(c.inner.Registry().Fingerprint(), raw)
	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Result cache lookup failed")
	} else if found {
		c.logger.WithField("cache_key", key).Debug("Result cache hit")
		return cached.Clone()
	}

	result := c.inner.InterpretBatch(raw)
	if err := c.cache.Set(ctx, key, result.Clone()); err != nil {
		c.logger.WithError(err).Warn("Failed to store result in cache")
	}
	return result
}

// InterpretReader reads r fully and interprets it through the cache.
func (c *CachedInterpreter) InterpretReader(ctx context.Context, r io.Reader) (*domain.BatchResult, error) {
	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return nil, err
	}
	return c.InterpretBatchContext(ctx, sb.String()), nil
}

var _ domain.GenotypeInterpreter = (*CachedInterpreter)(nil)

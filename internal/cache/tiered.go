package cache

import (
	"context"
	"errors"

	"github.com/genotype-insight-server/internal/domain"
)

// TieredCache consults its layers in order and back-fills faster layers on a hit in a slower
// one. Writes go to every layer.
type TieredCache struct {
	layers []domain.ResultCache
}

// NewTieredCache creates a cache over layers, fastest first. Nil layers are skipped.
func NewTieredCache(layers ...domain.ResultCache) *TieredCache {
	t := &TieredCache{}
	for _, l := range layers {
		if l != nil {
			t.layers = append(t.layers, l)
		}
	}
	return t
}

// Get implements domain.ResultCache. A failing layer is skipped; its error is reported only
// when no layer produced a hit.
func (t *TieredCache) Get(ctx context.Context, key string) (*domain.BatchResult, bool, error) {
	var errs []error
	for i, layer := range t.layers {
		result, ok, err := layer.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		for _, faster := range t.layers[:i] {
			if err := faster.Set(ctx, key, result); err != nil {
				errs = append(errs, err)
			}
		}
		return result, true, nil
	}
	return nil, false, errors.Join(errs...)
}

// Set implements domain.ResultCache.
func (t *TieredCache) Set(ctx context.Context, key string, result *domain.BatchResult) error {
	var errs []error
	for _, layer := range t.layers {
		if err := layer.Set(ctx, key, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.ResultCache = (*TieredCache)(nil)

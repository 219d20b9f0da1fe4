package source

import (
	"context"
	stderrors "errors"
	"time"

	"annual-reports-workers/internal/common/database"
	"annual-reports-workers/internal/common/errors"
	"annual-reports-workers/internal/common/logger"
	"annual-reports-workers/pkg/registry"
)

// Cache is the subset of the Redis client the snapshot cache needs.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedSource is a read-through cache of the validated JSON form of another
// source. Cache failures fall through to the inner source.
type CachedSource struct {
	inner  Source
	cache  Cache
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(inner Source, cache Cache, key string, ttl time.Duration, log logger.Logger) *CachedSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachedSource{inner: inner, cache: cache, key: key, ttl: ttl, logger: log}
}

func (s *CachedSource) Name() string { return s.inner.Name() + "+redis" }

func (s *CachedSource) Fetch(ctx context.Context) ([]byte, registry.Format, error) {
	data, err := s.cache.GetBytes(ctx, s.key)
	switch {
	case err == nil:
		return data, registry.FormatJSON, nil
	case stderrors.Is(err, database.ErrCacheMiss):
	default:
		s.logger.Warn("registry cache read failed", map[string]interface{}{
			"key":   s.key,
			"error": errors.NewCacheError("get", err),
		})
	}

	data, format, err := s.inner.Fetch(ctx)
	if err != nil {
		return nil, "", err
	}

	// Only documents that parse are cached.
	reg, err := registry.Parse(data, format)
	if err != nil {
		return data, format, nil
	}
	raw, err := reg.Raw()
	if err != nil {
		return data, format, nil
	}
	if err := s.cache.Set(ctx, s.key, raw, s.ttl); err != nil {
		s.logger.Warn("registry cache write failed", map[string]interface{}{
			"key":   s.key,
			"error": errors.NewCacheError("set", err),
		})
	}
	return raw, registry.FormatJSON, nil
}

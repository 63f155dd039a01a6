package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

const datasetKeyPrefix = "ds"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService caches derived dataset views. Keys embed the dataset version,
// so a view computed before a mutation is never served after it. A nil
// service behaves as a disabled cache.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled && repo != nil}
}

// DatasetKey builds the cache key of a derived view of one dataset version.
func DatasetKey(handle string, version uint64, parts ...string) string {
	key := fmt.Sprintf("%s:%s:v%d", datasetKeyPrefix, handle, version)
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	return key
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled
}

// Lookup fills dest from the cache and reports a hit. Backend failures are
// logged and count as a miss.
func (s *CacheService) Lookup(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true
	case !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

// Store saves a view under key. Failures are logged only; the response is
// still served from the freshly computed value.
func (s *CacheService) Store(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
	}
}

// Forget drops every cached view of a dataset, whatever its version.
func (s *CacheService) Forget(ctx context.Context, handle string) error {
	if !s.Enabled() {
		return nil
	}
	pattern := fmt.Sprintf("%s:%s:*", datasetKeyPrefix, handle)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("handle", handle), zap.Error(err))
		return err
	}
	return nil
}

// cachedView serves a view from cache or computes and stores it.
func cachedView[T any](ctx context.Context, cache *CacheService, key string, compute func() T) (T, bool) {
	var cached T
	if cache.Lookup(ctx, key, &cached) {
		return cached, true
	}
	view := compute()
	cache.Store(ctx, key, view)
	return view, false
}

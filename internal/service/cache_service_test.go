package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

type memoryCacheRepo struct {
	items  map[string][]byte
	getErr error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.items[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range r.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(r.items, key)
		}
	}
	return nil
}

func TestDatasetKey(t *testing.T) {
	assert.Equal(t, "ds:h1:v3", DatasetKey("h1", 3))
	assert.Equal(t, "ds:h1:v3:calendar:2024-05", DatasetKey("h1", 3, "calendar", "2024-05"))
}

func TestCacheServiceLookupStoreForget(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	assert.False(t, svc.Lookup(ctx, DatasetKey("h1", 1, "summary"), &out))

	svc.Store(ctx, DatasetKey("h1", 1, "summary"), map[string]int{"total": 3})
	require.True(t, svc.Lookup(ctx, DatasetKey("h1", 1, "summary"), &out))
	assert.Equal(t, 3, out["total"])
	assert.False(t, svc.Lookup(ctx, DatasetKey("h1", 2, "summary"), &out))

	svc.Store(ctx, DatasetKey("h2", 1, "summary"), map[string]int{"total": 1})
	require.NoError(t, svc.Forget(ctx, "h1"))
	assert.Len(t, repo.items, 1)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}

func TestCachedViewComputesOnce(t *testing.T) {
	svc := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	ctx := context.Background()
	calls := 0
	compute := func() []string {
		calls++
		return []string{"1001", "1002"}
	}

	first, hit := cachedView(ctx, svc, "ds:h1:v1:alerts", compute)
	assert.False(t, hit)
	second, hit := cachedView(ctx, svc, "ds:h1:v1:alerts", compute)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)
	svc.Store(context.Background(), "k", 1)
	assert.Empty(t, repo.items)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Lookup(context.Background(), "k", new(int)))
	assert.NoError(t, nilSvc.Forget(context.Background(), "h1"))

	_, hit := cachedView(context.Background(), nilSvc, "k", func() int { return 7 })
	assert.False(t, hit)
}

func TestCacheServiceBackendErrorIsMiss(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)
	assert.False(t, svc.Lookup(context.Background(), "k", new(int)))
}

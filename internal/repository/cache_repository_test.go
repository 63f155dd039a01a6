package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/permit-deadline-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "permit", nil)
	var dest map[string]int

	err := repo.Get(context.Background(), "summary", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(context.Background(), "summary", map[string]int{"total": 1}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	require.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyNamespace(t *testing.T) {
	assert.Equal(t, "permit:ds:1:summary", NewCacheRepository(nil, "permit", nil).key("ds:1:summary"))
	assert.Equal(t, "ds:1:summary", NewCacheRepository(nil, "", nil).key("ds:1:summary"))
}

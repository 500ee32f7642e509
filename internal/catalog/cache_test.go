package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/gedebog_store/internal/models"
)

func setupRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupRedis(t)

	_, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	cache, mr := setupRedis(t)
	ctx := context.Background()

	products := []models.Product{
		{ID: 1, Name: "Gedebog Original", Price: 15000, Stock: 100},
		{ID: 2, Name: "Gedebog Balado", Price: 16000, Stock: 80},
	}
	require.NoError(t, cache.Set(ctx, products))

	ttl := mr.TTL(cacheKey)
	assert.GreaterOrEqual(t, ttl, 5*time.Minute)
	assert.Less(t, ttl, 6*time.Minute)

	got, err := cache.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Gedebog Balado", got[1].Name)

	require.NoError(t, cache.Delete(ctx))
	assert.False(t, mr.Exists(cacheKey))
}

func TestRedisCache_Expires(t *testing.T) {
	cache, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, []models.Product{{ID: 1}}))
	mr.FastForward(7 * time.Minute)

	_, err := cache.Get(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_CorruptValue(t *testing.T) {
	cache, mr := setupRedis(t)
	require.NoError(t, mr.Set(cacheKey, "{not json"))

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

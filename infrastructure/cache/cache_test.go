package cache_test

import (
	"context"
	"testing"
	"time"

	"wellness-sync/infrastructure/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_EmptyAddressDisablesRedis(t *testing.T) {
	client, err := cache.NewCache(context.Background(), "", "", "")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestRefreshLock_NilClientIsNoop(t *testing.T) {
	lock := cache.NewRefreshLock(nil)
	release, err := lock.Acquire(context.Background(), "user-1:strava", time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "wellness-sync:refresh-lock:user-1:strava", cache.LockKey("user-1:strava"))
}

func TestRateLimiter_NilClientAllows(t *testing.T) {
	limiter := cache.NewRateLimiter(nil, 80, 800)
	for i := 0; i < 1000; i++ {
		ok, err := limiter.Allow(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestWindowKey_FixedBuckets(t *testing.T) {
	w := cache.Window{Name: "15m", Length: 15 * time.Minute, Limit: 80}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, cache.WindowKey(w, start), cache.WindowKey(w, start.Add(14*time.Minute+59*time.Second)))
	assert.NotEqual(t, cache.WindowKey(w, start), cache.WindowKey(w, start.Add(15*time.Minute)))
	assert.Equal(t, "wellness-sync:strava-rate:15m:1714557600", cache.WindowKey(w, start))
}

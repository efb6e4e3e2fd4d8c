package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 15*time.Minute)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_TravelLeg(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetTravelLeg(ctx, "A", "B")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetTravelLeg(ctx, "A", "B", domain.TravelLeg{Minutes: 25, Miles: 12.4}))

	leg, ok, err := c.GetTravelLeg(ctx, "A", "B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.TravelLeg{Minutes: 25, Miles: 12.4}, leg)

	_, ok, err = c.GetTravelLeg(ctx, "B", "A")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(16 * time.Minute)
	_, ok, err = c.GetTravelLeg(ctx, "A", "B")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CalendarLock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	token, ok, err := c.AcquireCalendarLock(ctx, "primary", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists("lock:calendar:primary"))

	_, ok, err = c.AcquireCalendarLock(ctx, "primary", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not release the current holder.
	require.NoError(t, c.ReleaseCalendarLock(ctx, "primary", "someone-else"))
	assert.True(t, mr.Exists("lock:calendar:primary"))

	require.NoError(t, c.ReleaseCalendarLock(ctx, "primary", token))
	assert.False(t, mr.Exists("lock:calendar:primary"))

	_, ok, err = c.AcquireCalendarLock(ctx, "primary", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_CalendarLockExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.AcquireCalendarLock(ctx, "primary", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = c.AcquireCalendarLock(ctx, "primary", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_CalendarLockRefresh(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	token, ok, err := c.AcquireCalendarLock(ctx, "primary", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(1500 * time.Millisecond)
	ok, err = c.RefreshCalendarLock(ctx, "primary", token, 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(1500 * time.Millisecond)
	assert.True(t, mr.Exists("lock:calendar:primary"))

	ok, err = c.RefreshCalendarLock(ctx, "primary", "someone-else", 2*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Second)
	ok, err = c.RefreshCalendarLock(ctx, "primary", token, 2*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

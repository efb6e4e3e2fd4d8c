package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/fieldbooking/config"
	"github.com/Domenick1991/fieldbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock that was taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock TTL under the same token check.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisCache struct {
	client    *redis.Client
	travelTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, travelTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		travelTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, travelTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, travelTTL: travelTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type cachedLeg struct {
	Minutes int     `json:"minutes"`
	Miles   float64 `json:"miles"`
}

func (c *RedisCache) GetTravelLeg(ctx context.Context, origin, destination string) (domain.TravelLeg, bool, error) {
	data, err := c.client.Get(ctx, travelKey(origin, destination)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TravelLeg{}, false, nil
		}
		return domain.TravelLeg{}, false, err
	}

	var leg cachedLeg
	if err := json.Unmarshal(data, &leg); err != nil {
		return domain.TravelLeg{}, false, err
	}
	return domain.TravelLeg{Minutes: leg.Minutes, Miles: leg.Miles}, true, nil
}

func (c *RedisCache) SetTravelLeg(ctx context.Context, origin, destination string, leg domain.TravelLeg) error {
	payload, err := json.Marshal(cachedLeg{Minutes: leg.Minutes, Miles: leg.Miles})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, travelKey(origin, destination), payload, c.travelTTL).Err()
}

// AcquireCalendarLock returns the token to release with, or ok=false while
// another holder owns the lock.
func (c *RedisCache) AcquireCalendarLock(ctx context.Context, calendarID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, calendarLockKey(calendarID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) ReleaseCalendarLock(ctx context.Context, calendarID, token string) error {
	return releaseScript.Run(ctx, c.client, []string{calendarLockKey(calendarID)}, token).Err()
}

// RefreshCalendarLock resets the lock TTL while token still holds it. ok=false
// means the lock expired or was taken over.
func (c *RedisCache) RefreshCalendarLock(ctx context.Context, calendarID, token string, ttl time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, c.client, []string{calendarLockKey(calendarID)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Addresses can be long and contain anything, so keys use a digest.
func travelKey(origin, destination string) string {
	sum := sha256.Sum256([]byte(origin + "\x00" + destination))
	return "cache:travel:" + hex.EncodeToString(sum[:16])
}

func calendarLockKey(calendarID string) string {
	return "lock:calendar:" + calendarID
}

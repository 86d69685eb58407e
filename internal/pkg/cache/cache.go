package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

var (
	client *redis.Client
	ctx    = context.Background()
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = redis.Nil

// SetupCache initializes the connection to the Redis server
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0,
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to Redis cache: %v", err)
	} else {
		log.Printf("Successfully connected to Redis cache: %s", pong)
	}
}

// SetClient replaces the client, used by tests to point the cache at miniredis.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Set stores a value in the cache with the given key and expiration time
func Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func Get(key string) (string, error) {
	return GetClient().Get(ctx, key).Result()
}

// GetInt retrieves an integer value from the cache by key
func GetInt(key string) (int, error) {
	val, err := GetClient().Get(ctx, key).Int()
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Delete removes a value from the cache by key
func Delete(key string) error {
	return GetClient().Del(ctx, key).Err()
}

// IsMiss reports whether err means the key was not found.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Lock is a best-effort mutual exclusion held in Redis until released or expired.
type Lock struct {
	key   string
	token string
}

// ErrLocked is returned by AcquireLock when another holder owns the key.
var ErrLocked = errors.New("cache: lock is held")

// AcquireLock sets key with NX and the given TTL. The token identifies the holder on release.
func AcquireLock(key, token string, ttl time.Duration) (*Lock, error) {
	ok, err := GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{key: key, token: token}, nil
}

// compare-and-delete so an expired lock re-acquired by someone else is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release deletes the lock if it is still owned by this holder.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, GetClient(), []string{l.key}, l.token).Err()
}

// Package session holds the login session store and small helpers for
// single-use values such as the ad platform OAuth state.
package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

// ErrNoStore is returned when the store has not been set up.
var ErrNoStore = errors.New("session store not initialized")

const (
	cookieName       = "adinsights_session"
	defaultTTLHours  = 24
	defaultSessionDB = 1
)

var sessionStore *session.Store

// redisTarget derives host, port and password from the cache client so both
// talk to the same Redis; env values apply when the cache is not set up.
func redisTarget() (string, int, string) {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnvInt("CACHE_PORT", 6379)
	password := env.GetEnv("CACHE_PASSWORD", "")
	client := cache.GetClient()
	if client == nil {
		return host, port, password
	}
	opts := client.Options()
	if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if opts.Password != "" {
		password = opts.Password
	}
	return host, port, password
}

// NewSessionStore creates the Redis backed login store. It lives in its own
// database (SESSION_DB, default 1) next to the cache and the goth store.
func NewSessionStore() *session.Store {
	host, port, password := redisTarget()
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: env.GetEnvInt("SESSION_DB", defaultSessionDB),
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     time.Duration(env.GetEnvInt("SESSION_TTL_HOURS", defaultTTLHours)) * time.Hour,
		KeyLookup:      "cookie:" + cookieName,
	})
	return sessionStore
}

// SetSessionStore swaps the store, e.g. for an in-memory one in tests.
func SetSessionStore(store *session.Store) {
	sessionStore = store
}

func GetSessionStore() *session.Store {
	return sessionStore
}

func current(c *fiber.Ctx) (*session.Session, error) {
	if sessionStore == nil {
		return nil, ErrNoStore
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// SetSessionValue stores value under key in the caller's session.
func SetSessionValue(c *fiber.Ctx, key, value string) error {
	sess, err := current(c)
	if err != nil {
		return err
	}
	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue returns the string under key, or "".
func GetSessionValue(c *fiber.Ctx, key string) string {
	sess, err := current(c)
	if err != nil {
		return ""
	}
	s, _ := sess.Get(key).(string)
	return s
}

// PopSessionValue returns the value and removes it so that it cannot be replayed.
func PopSessionValue(c *fiber.Ctx, key string) string {
	sess, err := current(c)
	if err != nil {
		return ""
	}
	s, _ := sess.Get(key).(string)
	if s == "" {
		return ""
	}
	sess.Delete(key)
	_ = sess.Save()
	return s
}

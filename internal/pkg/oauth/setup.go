// Package oauth registers the social login providers. Ad-platform connections use
// their own OAuth clients in googleads and metaads.
package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

// BaseURL is PUBLIC_DOMAIN without trailing slash, or localhost with APP_PORT.
func BaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

// Providers builds the login providers that have credentials configured.
func Providers(base string) []goth.Provider {
	var providers []goth.Provider
	if id := env.GetEnv("GOOGLE_LOGIN_CLIENT_ID", ""); id != "" {
		providers = append(providers, google.New(
			id,
			env.GetEnv("GOOGLE_LOGIN_CLIENT_SECRET", ""),
			base+"/auth/google/callback",
			"email", "profile",
		))
	}
	if id := env.GetEnv("META_LOGIN_CLIENT_ID", ""); id != "" {
		providers = append(providers, facebook.New(
			id,
			env.GetEnv("META_LOGIN_CLIENT_SECRET", ""),
			base+"/auth/facebook/callback",
			"email", "public_profile",
		))
	}
	return providers
}

// Setup registers the providers and points goth at a Redis session store (database 2).
func Setup() {
	goth.UseProviders(Providers(BaseURL())...)

	cacheOpts := cache.GetClient().Options()
	host, port := "127.0.0.1", 6379
	if cacheOpts.Addr != "" {
		if h, p, err := net.SplitHostPort(cacheOpts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = cacheOpts.Addr
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: cacheOpts.Username,
			Password: cacheOpts.Password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour,
	})
}

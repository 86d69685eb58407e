package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AdInsights/internal/pkg/session"
	"github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the logged-in user from the session on every request.
// Goth keeps its own store on /auth/*, so those paths stay anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	uc := usercontext.UserContext{}
	if store := session.GetSessionStore(); store != nil && !strings.HasPrefix(c.Path(), "/auth/") {
		sess, err := store.Get(c)
		if err != nil {
			log.Warnf("load session for %s: %v", c.Path(), err)
		} else {
			uc = usercontext.FromSession(sess)
		}
	}
	usercontext.Set(c, uc)
	return c.Next()
}

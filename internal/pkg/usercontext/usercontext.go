// Package usercontext carries the logged-in user through a request.
package usercontext

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys written at login and Locals keys read by the auth middlewares.
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "is_admin"
	KeyFromProtected = "from_protected"

	localsKey = "user_context"
)

type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// FromSession reads the login keys. A session without a user id is anonymous.
func FromSession(sess *session.Session) UserContext {
	if sess == nil {
		return UserContext{}
	}
	if ok, _ := sess.Get(AuthKey).(bool); !ok {
		return UserContext{}
	}
	userID, _ := sess.Get(KeyUserID).(uint)
	if userID == 0 {
		return UserContext{}
	}
	username, _ := sess.Get(KeyUsername).(string)
	isAdmin, _ := sess.Get(KeyIsAdmin).(bool)
	return UserContext{UserID: userID, Username: username, IsLoggedIn: true, IsAdmin: isAdmin}
}

// Set stores uc in the request locals together with the flags the auth middlewares read.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
	if uc.IsLoggedIn {
		c.Locals(KeyUserID, uc.UserID)
		c.Locals(KeyUsername, uc.Username)
	}
}

// Get returns the request's user, anonymous when none was set.
func Get(c *fiber.Ctx) UserContext {
	uc, _ := c.Locals(localsKey).(UserContext)
	return uc
}

func IsLoggedIn(c *fiber.Ctx) bool {
	return Get(c).IsLoggedIn
}

// GetUserID returns 0 for anonymous requests.
func GetUserID(c *fiber.Ctx) uint {
	return Get(c).UserID
}

package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	"github.com/ManuelReschke/AdInsights/internal/pkg/entitlements"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
	icuser "github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

func loggedIn(c *fiber.Ctx) bool {
	b, ok := c.Locals(icuser.KeyFromProtected).(bool)
	return ok && b
}

// RequireAuth ensures a logged-in web session; redirects to /login if missing.
func RequireAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a logged-in admin; redirects otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Redirect("/login", fiber.StatusSeeOther)
	}
	if isAdmin, ok := c.Locals(icuser.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}

func resolveAccess(c *fiber.Ctx, src entitlements.SubscriptionSource) (entitlements.Access, error) {
	return entitlements.Resolve(src, icuser.GetUserID(c), func(err error) bool {
		return errors.Is(err, billing.ErrSubscriptionNotFound)
	})
}

// RequireSubscriptionAPI answers 403 subscription_required unless the user holds an
// active, trialing or past_due subscription. It must run after RequireAPISessionAuth.
func RequireSubscriptionAPI(src entitlements.SubscriptionSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		access, err := resolveAccess(c, src)
		if err != nil {
			log.Errorf("subscription lookup for user %d: %v", icuser.GetUserID(c), err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
		if !access.Allows() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "subscription_required"})
		}
		return c.Next()
	}
}

// RequireSubscription is the page variant: it flashes a warning and redirects to the plans.
// With planNames set only those plans pass.
func RequireSubscription(src entitlements.SubscriptionSource, planNames ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !loggedIn(c) {
			return flash.Warning(c, "Please log in to access this page.", constants.LoginRoute)
		}
		access, err := resolveAccess(c, src)
		if err != nil {
			log.Errorf("subscription lookup for user %d: %v", icuser.GetUserID(c), err)
			return flash.Error(c, "An unexpected error occurred. Please try again later.", "/")
		}
		if !access.Subscribed {
			return flash.Warning(c, "You need an active subscription to access this page.", constants.PlansRoute)
		}
		if !access.Allows(planNames...) {
			return flash.Warning(c, planRequiredMessage(planNames, access.PlanName), constants.PlansRoute)
		}
		return c.Next()
	}
}

func planRequiredMessage(planNames []string, current string) string {
	msg := "This page requires a "
	for i, n := range planNames {
		if i > 0 {
			msg += " or "
		}
		msg += n
	}
	return msg + " subscription. Your current plan is " + current + "."
}

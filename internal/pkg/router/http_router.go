package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AdInsights/internal/pkg/middleware"
	"github.com/ManuelReschke/AdInsights/internal/pkg/oauth"
	"github.com/ManuelReschke/AdInsights/internal/pkg/session"
)

type HttpRouter struct {
	ctrl *Controllers
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter(ctrl *Controllers) *HttpRouter {
	return &HttpRouter{ctrl: ctrl}
}

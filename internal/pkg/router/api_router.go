package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	ctrl *Controllers
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	}))
	api.Get("/health", h.ctrl.Admin.HandleHealth)
}

func NewApiRouter(ctrl *Controllers) *ApiRouter {
	return &ApiRouter{ctrl: ctrl}
}

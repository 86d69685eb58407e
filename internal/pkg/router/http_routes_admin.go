package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AdInsights/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.RequireAdmin)
	adminGroup.Get("/fetch-stats", h.ctrl.Admin.HandleFetchStats)
}

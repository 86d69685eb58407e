package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
	"github.com/ManuelReschke/AdInsights/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/AdInsights/internal/pkg/statistics"
)

// AdminController serves the operator views: fetch counters, platform statistics and health.
type AdminController struct {
	db  *gorm.DB
	now Clock
}

func NewAdminController(db *gorm.DB, now Clock) *AdminController {
	return &AdminController{db: db, now: now.orDefault()}
}

// HandleFetchStats returns the fetch outcome counters per platform and the cached totals.
func (ac *AdminController) HandleFetchStats(c *fiber.Ctx) error {
	fetches := make([]counter.FetchStats, 0, len(models.Platforms))
	for _, p := range models.Platforms {
		s, err := counter.GetFetchStats(p)
		if err != nil {
			return serverError(c, "read fetch counters", err)
		}
		fetches = append(fetches, s)
	}
	return c.JSON(fiber.Map{
		"fetches":      fetches,
		"statistics":   statistics.GetStatisticsData(ac.db),
		"generated_at": ac.now().UTC(),
	})
}

// HandleResetFetchStats drains the counters and returns what they held.
func (ac *AdminController) HandleResetFetchStats(c *fiber.Ctx) error {
	drained := make([]counter.FetchStats, 0, len(models.Platforms))
	for _, p := range models.Platforms {
		s, err := counter.DrainFetchStats(p)
		if err != nil {
			return serverError(c, "drain fetch counters", err)
		}
		drained = append(drained, s)
	}
	statistics.ResetCacheUpdateTimer()
	log.Infof("admin %d reset fetch counters", currentUserID(c))
	return c.JSON(fiber.Map{"drained": drained})
}

// HandleHealth pings MySQL and Redis. Public, limiter protected.
func (ac *AdminController) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok", "cache": "ok"}
	healthy := true
	if sqlDB, err := ac.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		healthy = false
	}
	if rdb := cache.GetClient(); rdb == nil || rdb.Ping(ctx).Err() != nil {
		checks["cache"] = "unavailable"
		healthy = false
	}

	status := fiber.StatusOK
	checks["status"] = "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		checks["status"] = "degraded"
		log.Warnf("health check degraded: %v", checks)
	}
	return c.Status(status).JSON(checks)
}

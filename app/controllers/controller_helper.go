package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

// Clock returns the current time; controllers take one so tests can pin "today".
type Clock func() time.Time

func (c Clock) orDefault() Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// today is the current UTC calendar day.
func today(now Clock) time.Time {
	return models.FactDate(now().UTC())
}

func isLoggedIn(c *fiber.Ctx) bool {
	return usercontext.IsLoggedIn(c)
}

// currentUserID is the id put into locals by the user context middleware.
func currentUserID(c *fiber.Ctx) uint {
	return usercontext.GetUserID(c)
}

// badRequest logs the rejected parameters and answers 400 {"error": msg}.
func badRequest(c *fiber.Ctx, msg string) error {
	log.Warnf("Bad request to %s: %s (Params: %s)", c.Path(), msg, string(c.Request().URI().QueryString()))
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// serverError logs err with context and answers 500 without leaking details.
func serverError(c *fiber.Ctx, context string, err error) error {
	log.Errorf("%s %s: %s: %v", c.Method(), c.Path(), context, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
}

// titleWords turns "cvr_clicks" into "Cvr Clicks".
func titleWords(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// Package flash wraps the cookie based flash messages used by page routes.
package flash

import (
	"github.com/gofiber/fiber/v2"
	sflash "github.com/sujit-baniya/flash"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Redirect stores a message of the given level and redirects to location.
func Redirect(c *fiber.Ctx, level, message, location string) error {
	data := fiber.Map{"type": level, "message": message}
	switch level {
	case LevelSuccess:
		return sflash.WithSuccess(c, data).Redirect(location)
	case LevelError:
		return sflash.WithError(c, data).Redirect(location)
	case LevelWarning:
		return sflash.WithWarn(c, data).Redirect(location)
	default:
		return sflash.WithInfo(c, data).Redirect(location)
	}
}

func Success(c *fiber.Ctx, message, location string) error {
	return Redirect(c, LevelSuccess, message, location)
}

func Error(c *fiber.Ctx, message, location string) error {
	return Redirect(c, LevelError, message, location)
}

func Warning(c *fiber.Ctx, message, location string) error {
	return Redirect(c, LevelWarning, message, location)
}

func Info(c *fiber.Ctx, message, location string) error {
	return Redirect(c, LevelInfo, message, location)
}

// Get returns the message set by the previous request, or nil.
func Get(c *fiber.Ctx) fiber.Map {
	m := sflash.Get(c)
	if len(m) == 0 {
		return nil
	}
	return m
}

package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AdInsights/internal/pkg/optimization"
)

type OptimizationController struct{}

func NewOptimizationController() *OptimizationController {
	return &OptimizationController{}
}

// HandleBudgetSimulator projects clicks, conversions and CPA for each budget scenario.
func (oc *OptimizationController) HandleBudgetSimulator(c *fiber.Ctx) error {
	req, err := optimization.ParseRequest(c.Body())
	if err != nil {
		var verr *optimization.ValidationError
		if errors.As(err, &verr) {
			return badRequest(c, verr.Message)
		}
		return serverError(c, "parse simulator request", err)
	}
	return c.JSON(optimization.Simulate(req))
}

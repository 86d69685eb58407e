// Package optimization projects campaign outcomes for alternative budgets.
package optimization

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/ManuelReschke/AdInsights/internal/pkg/analytics"
)

const Assumptions = "Projections assume Cost Per Click (CPC) and Click-based Conversion Rate (CVR) remain constant at the provided values. Actual results may vary."

// ValidationError carries the message returned to the client with a 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Request is a validated simulator input.
type Request struct {
	CPC     float64
	CVR     float64
	Budgets []float64
}

type Scenario struct {
	Budget               float64 `json:"budget"`
	ProjectedClicks      float64 `json:"projected_clicks"`
	ProjectedSpend       float64 `json:"projected_spend"`
	ProjectedConversions float64 `json:"projected_conversions"`
	ProjectedCPA         float64 `json:"projected_cpa"`
}

type Result struct {
	Scenarios   []Scenario `json:"scenarios"`
	Assumptions string     `json:"assumptions"`
}

// ParseRequest decodes and validates a simulator payload. Checks run in a
// fixed order and the first failure wins.
func ParseRequest(body []byte) (Request, error) {
	var raw map[string]json.RawMessage
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &raw) != nil || raw == nil {
		return Request{}, invalid("Missing JSON payload.")
	}

	cpcRaw, hasCPC := present(raw, "current_cpc")
	cvrRaw, hasCVR := present(raw, "current_cvr_clicks")
	if !hasCPC || !hasCVR {
		return Request{}, invalid("current_cpc and current_cvr_clicks are required.")
	}
	cpc, okCPC := number(cpcRaw)
	cvr, okCVR := number(cvrRaw)
	if !okCPC || !okCVR {
		return Request{}, invalid("CPC and CVR must be numbers.")
	}

	var items []json.RawMessage
	scenariosRaw, _ := present(raw, "budget_scenarios")
	if scenariosRaw == nil || json.Unmarshal(scenariosRaw, &items) != nil || len(items) == 0 {
		return Request{}, invalid("budget_scenarios must be a non-empty list of positive numbers.")
	}
	budgets := make([]float64, 0, len(items))
	for _, it := range items {
		b, ok := number(it)
		if !ok || b <= 0 {
			return Request{}, invalid("All budget scenarios must be positive numbers.")
		}
		budgets = append(budgets, b)
	}

	if cpc <= 0 {
		return Request{}, invalid("Current CPC must be greater than zero.")
	}
	if cvr < 0 || cvr > 1 {
		return Request{}, invalid("Current CVR (Click-based) must be between 0 (0%) and 1 (100%).")
	}
	return Request{CPC: cpc, CVR: cvr, Budgets: budgets}, nil
}

// present treats JSON null like an absent key.
func present(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := raw[key]
	if !ok || string(bytes.TrimSpace(v)) == "null" {
		return nil, false
	}
	return v, true
}

// number only accepts JSON numbers; numeric strings and booleans are rejected.
func number(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// Simulate spends each budget at the given CPC and converts clicks at the given CVR.
func Simulate(req Request) Result {
	out := Result{Scenarios: make([]Scenario, 0, len(req.Budgets)), Assumptions: Assumptions}
	for _, budget := range req.Budgets {
		clicks := budget / req.CPC
		conversions := clicks * req.CVR
		cpa := 0.0
		if conversions > 0 {
			cpa = budget / conversions
		}
		out.Scenarios = append(out.Scenarios, Scenario{
			Budget:               analytics.Round(budget, 2),
			ProjectedClicks:      math.Round(clicks),
			ProjectedSpend:       analytics.Round(budget, 2),
			ProjectedConversions: analytics.Round(conversions, 2),
			ProjectedCPA:         analytics.Round(cpa, 2),
		})
	}
	return out
}

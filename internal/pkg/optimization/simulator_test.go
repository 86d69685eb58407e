package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	req, err := ParseRequest([]byte(`{"current_cpc": 2.0, "current_cvr_clicks": 0.05, "budget_scenarios": [100, 250.5]}`))
	require.NoError(t, err)

	res := Simulate(req)
	require.Len(t, res.Scenarios, 2)
	assert.Equal(t, Scenario{Budget: 100, ProjectedClicks: 50, ProjectedSpend: 100, ProjectedConversions: 2.5, ProjectedCPA: 40}, res.Scenarios[0])
	assert.Equal(t, 125.0, res.Scenarios[1].ProjectedClicks)
	assert.Equal(t, 250.5, res.Scenarios[1].Budget)
	assert.Equal(t, Assumptions, res.Assumptions)
}

func TestSimulateZeroConversionRate(t *testing.T) {
	req, err := ParseRequest([]byte(`{"current_cpc": 1, "current_cvr_clicks": 0, "budget_scenarios": [10]}`))
	require.NoError(t, err)
	s := Simulate(req).Scenarios[0]
	assert.Equal(t, 0.0, s.ProjectedConversions)
	assert.Equal(t, 0.0, s.ProjectedCPA)
}

func TestParseRequestValidation(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{``, "Missing JSON payload."},
		{`not json`, "Missing JSON payload."},
		{`[1,2]`, "Missing JSON payload."},
		{`{"current_cpc": 2}`, "current_cpc and current_cvr_clicks are required."},
		{`{"current_cpc": null, "current_cvr_clicks": 0.1}`, "current_cpc and current_cvr_clicks are required."},
		{`{"current_cpc": "2", "current_cvr_clicks": 0.1}`, "CPC and CVR must be numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": true}`, "CPC and CVR must be numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": 0.1}`, "budget_scenarios must be a non-empty list of positive numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": 0.1, "budget_scenarios": []}`, "budget_scenarios must be a non-empty list of positive numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": 0.1, "budget_scenarios": 100}`, "budget_scenarios must be a non-empty list of positive numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": 0.1, "budget_scenarios": [100, 0]}`, "All budget scenarios must be positive numbers."},
		{`{"current_cpc": 2, "current_cvr_clicks": 0.1, "budget_scenarios": [100, "x"]}`, "All budget scenarios must be positive numbers."},
		{`{"current_cpc": 0, "current_cvr_clicks": 0.1, "budget_scenarios": [100]}`, "Current CPC must be greater than zero."},
		{`{"current_cpc": -1, "current_cvr_clicks": 0.1, "budget_scenarios": [100]}`, "Current CPC must be greater than zero."},
		{`{"current_cpc": 2, "current_cvr_clicks": 1.5, "budget_scenarios": [100]}`, "Current CVR (Click-based) must be between 0 (0%) and 1 (100%)."},
		{`{"current_cpc": 2, "current_cvr_clicks": -0.1, "budget_scenarios": [100]}`, "Current CVR (Click-based) must be between 0 (0%) and 1 (100%)."},
	}
	for _, tc := range cases {
		_, err := ParseRequest([]byte(tc.body))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("body %q: expected ValidationError, got %v", tc.body, err)
		}
		if verr.Message != tc.want {
			t.Fatalf("body %q: message %q, want %q", tc.body, verr.Message, tc.want)
		}
	}
}

package googleads

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		OAuth: &oauth2.Config{
			ClientID:     "cid",
			ClientSecret: "secret",
			RedirectURL:  "https://app.example.com/integration/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/auth",
				TokenURL: srv.URL + "/token",
			},
			Scopes: []string{Scope},
		},
		DeveloperToken:  "dev-token",
		LoginCustomerID: "1112223333",
		APIBaseURL:      srv.URL,
		APIVersion:      "v16",
		HTTPClient:      srv.Client(),
	}
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-1"}`)
}

func TestCustomerIDHelpers(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{in: "123-456-7890", valid: true},
		{in: "1234567890", valid: true},
		{in: " 123-456-7890 ", valid: true},
		{in: "12-3456-7890", valid: false},
		{in: "123-456-789", valid: false},
		{in: "abc-def-ghij", valid: false},
		{in: "", valid: false},
	}
	for _, tt := range tests {
		if got := ValidCustomerID(tt.in); got != tt.valid {
			t.Fatalf("ValidCustomerID(%q) = %v, want %v", tt.in, got, tt.valid)
		}
	}

	assert.Equal(t, "1234567890", NormalizeCustomerID("123-456-7890"))
	assert.Equal(t, "123-456-7890", FormatCustomerID("1234567890"))
	assert.Equal(t, "12", FormatCustomerID("12"))
}

func TestAuthCodeURLRequestsOfflineConsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(tokenHandler))
	defer srv.Close()

	raw, err := newTestClient(srv).AuthCodeURL("state-xyz")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, Scope, q.Get("scope"))
}

func TestAuthCodeURLNotConfigured(t *testing.T) {
	c := &Client{OAuth: &oauth2.Config{}}
	_, err := c.AuthCodeURL("s")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(tokenHandler))
	defer srv.Close()

	tok, err := newTestClient(srv).Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
}

func TestSessionRequiresTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(tokenHandler))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Session(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingRefreshToken)

	c.DeveloperToken = ""
	_, err = c.Session(context.Background(), "refresh-1")
	require.ErrorIs(t, err, ErrMissingDevToken)
}

func TestStreamCampaignSegments(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v16/customers/1234567890/googleAds:searchStream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		assert.Equal(t, "1112223333", r.Header.Get("login-customer-id"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body["query"]

		_, _ = io.WriteString(w, `[
			{"results":[
				{"campaign":{"id":"42","name":"Brand"},
				 "segments":{"date":"2024-05-01","device":"MOBILE","geoTargetCountry":"geoTargetConstants/2276",
				             "ageRange":{"ageRangeType":"AGE_RANGE_25_34"},"gender":{"genderType":"FEMALE"}},
				 "metrics":{"impressions":"1000","clicks":"50","costMicros":"12345678","conversions":2.7}}
			]},
			{"results":[
				{"campaign":{"id":"43","name":"Generic"},
				 "segments":{"date":"2024-05-02","device":"DESKTOP"},
				 "metrics":{"impressions":"10","clicks":"1","costMicros":"0","conversions":0}}
			]}
		]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestClient(srv).Session(context.Background(), "refresh-1")
	require.NoError(t, err)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6)
	var batches [][]Row
	err = sess.StreamCampaignSegments(context.Background(), "123-456-7890", from, to, func(rows []Row) error {
		batches = append(batches, rows)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Contains(t, gotQuery, "BETWEEN '2024-05-01' AND '2024-05-07'")
	assert.Contains(t, gotQuery, "segments.device")

	first := batches[0][0]
	assert.Equal(t, "42", first.CampaignID)
	assert.Equal(t, "Brand", first.CampaignName)
	assert.Equal(t, "MOBILE", first.Device)
	assert.Equal(t, "geoTargetConstants/2276", first.Country)
	assert.Equal(t, "AGE_RANGE_25_34", first.AgeRange)
	assert.Equal(t, "FEMALE", first.Gender)
	assert.Equal(t, int64(1000), first.Impressions)
	assert.Equal(t, int64(50), first.Clicks)
	assert.Equal(t, int64(12345678), first.CostMicros)
	assert.InDelta(t, 2.7, first.Conversions, 1e-9)

	assert.Equal(t, "", batches[1][0].Gender)
}

func TestStreamCampaignSegmentsStopsOnCallbackError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v16/customers/1234567890/googleAds:searchStream", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"results":[]},{"results":[]}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestClient(srv).Session(context.Background(), "refresh-1")
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = sess.StreamCampaignSegments(context.Background(), "1234567890", time.Now(), time.Now(), func([]Row) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestStreamCampaignSegmentsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/v16/customers/1234567890/googleAds:searchStream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"status":"PERMISSION_DENIED"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sess, err := newTestClient(srv).Session(context.Background(), "refresh-1")
	require.NoError(t, err)

	err = sess.StreamCampaignSegments(context.Background(), "1234567890", time.Now(), time.Now(), func([]Row) error { return nil })
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.True(t, strings.Contains(apiErr.Body, "PERMISSION_DENIED"))
}

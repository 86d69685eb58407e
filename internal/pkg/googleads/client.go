// Package googleads is a small REST client for the Google Ads API:
// OAuth consent, token exchange and the campaign searchStream report.
package googleads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

const (
	defaultAPIBaseURL = "https://googleads.googleapis.com"
	defaultAPIVersion = "v16"

	// Scope grants read access to the Google Ads API.
	Scope = "https://www.googleapis.com/auth/adwords"
)

var (
	ErrNotConfigured       = errors.New("GOOGLE_ADS_API_CLIENT_ID/GOOGLE_ADS_API_CLIENT_SECRET are not configured")
	ErrMissingDevToken     = errors.New("GOOGLE_ADS_DEVELOPER_TOKEN is not configured")
	ErrMissingRefreshToken = errors.New("google ads refresh token is missing")
)

type Client struct {
	OAuth           *oauth2.Config
	DeveloperToken  string
	LoginCustomerID string

	APIBaseURL string
	APIVersion string

	HTTPClient *http.Client
}

// APIError is a non-2xx answer from the Google Ads API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google ads request failed: status=%d body=%s", e.Status, e.Body)
}

func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("GOOGLE_ADS_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/integration/google/callback"
	}

	return &Client{
		OAuth: &oauth2.Config{
			ClientID:     strings.TrimSpace(env.GetEnv("GOOGLE_ADS_API_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(env.GetEnv("GOOGLE_ADS_API_CLIENT_SECRET", "")),
			RedirectURL:  redirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       []string{Scope},
		},
		DeveloperToken:  strings.TrimSpace(env.GetEnv("GOOGLE_ADS_DEVELOPER_TOKEN", "")),
		LoginCustomerID: NormalizeCustomerID(env.GetEnv("GOOGLE_ADS_LOGIN_CUSTOMER_ID", "")),
		APIBaseURL:      strings.TrimSpace(env.GetEnv("GOOGLE_ADS_API_BASE_URL", defaultAPIBaseURL)),
		APIVersion:      strings.TrimSpace(env.GetEnv("GOOGLE_ADS_API_VERSION", defaultAPIVersion)),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) configured() bool {
	return c.OAuth != nil && c.OAuth.ClientID != "" && c.OAuth.ClientSecret != ""
}

// AuthCodeURL asks for offline access with forced consent so Google always returns a refresh token.
func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if c.OAuth.RedirectURL == "" {
		return "", errors.New("GOOGLE_ADS_REDIRECT_URI is not configured")
	}
	return c.OAuth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades the callback code for an access and refresh token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}
	return c.OAuth.Exchange(c.oauthContext(ctx), strings.TrimSpace(code))
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	if c.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}

// Session binds the client to one refresh token; access tokens are refreshed on demand.
type Session struct {
	client *Client
	http   *http.Client
}

func (c *Client) Session(ctx context.Context, refreshToken string) (*Session, error) {
	if c.DeveloperToken == "" {
		return nil, ErrMissingDevToken
	}
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrMissingRefreshToken
	}
	octx := c.oauthContext(ctx)
	hc := oauth2.NewClient(octx, c.OAuth.TokenSource(octx, &oauth2.Token{RefreshToken: refreshToken}))
	if c.HTTPClient != nil {
		hc.Timeout = c.HTTPClient.Timeout
	}
	return &Session{client: c, http: hc}, nil
}

// NormalizeCustomerID strips dashes and blanks: "123-456-7890" -> "1234567890".
func NormalizeCustomerID(id string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(id))
}

// ValidCustomerID accepts "xxx-xxx-xxxx" or ten plain digits.
func ValidCustomerID(id string) bool {
	id = strings.TrimSpace(id)
	if len(id) == 12 && (id[3] != '-' || id[7] != '-') {
		return false
	}
	if len(id) != 12 && len(id) != 10 {
		return false
	}
	digits := NormalizeCustomerID(id)
	if len(digits) != 10 {
		return false
	}
	_, err := strconv.ParseUint(digits, 10, 64)
	return err == nil
}

// FormatCustomerID renders ten digits as xxx-xxx-xxxx.
func FormatCustomerID(id string) string {
	d := NormalizeCustomerID(id)
	if len(d) != 10 {
		return id
	}
	return d[:3] + "-" + d[3:6] + "-" + d[6:]
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return &APIError{Status: resp.StatusCode, Body: string(body)}
}

// int64Value decodes proto3 JSON int64 fields, which arrive as strings.
type int64Value int64

func (v *int64Value) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*v = int64Value(n)
	return nil
}

var _ json.Unmarshaler = (*int64Value)(nil)

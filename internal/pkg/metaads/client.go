// Package metaads talks to the Meta Graph API for ad account discovery and campaign insights.
package metaads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

const (
	defaultGraphBaseURL = "https://graph.facebook.com"
	defaultAPIVersion   = "v18.0"

	// tokenExpiredCode is the Graph error code for an invalid or expired access token.
	tokenExpiredCode = 190
)

var DefaultScopes = []string{"ads_read", "read_insights", "business_management"}

var ErrNotConfigured = errors.New("META_ADS_APP_ID/META_ADS_APP_SECRET are not configured")

type Client struct {
	OAuth *oauth2.Config

	GraphBaseURL string
	APIVersion   string

	HTTPClient *http.Client
}

// APIError carries the Graph API error object of a failed request.
type APIError struct {
	Status  int
	Code    int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meta graph request failed: status=%d code=%d type=%s message=%s", e.Status, e.Code, e.Type, e.Message)
}

// TokenExpired reports whether the error means the user must reconnect.
func (e *APIError) TokenExpired() bool {
	return e.Code == tokenExpiredCode
}

// IsTokenExpired unwraps err looking for an expired-token Graph error.
func IsTokenExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.TokenExpired()
}

func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	redirectURI := strings.TrimSpace(env.GetEnv("META_REDIRECT_URI", ""))
	if redirectURI == "" && base != "" {
		redirectURI = base + "/integration/meta/callback"
	}
	version := strings.TrimSpace(env.GetEnv("META_GRAPH_API_VERSION", defaultAPIVersion))

	endpoint := facebook.Endpoint
	endpoint.AuthURL = fmt.Sprintf("https://www.facebook.com/%s/dialog/oauth", version)
	endpoint.TokenURL = fmt.Sprintf("%s/%s/oauth/access_token", defaultGraphBaseURL, version)

	return &Client{
		OAuth: &oauth2.Config{
			ClientID:     strings.TrimSpace(env.GetEnv("META_ADS_APP_ID", "")),
			ClientSecret: strings.TrimSpace(env.GetEnv("META_ADS_APP_SECRET", "")),
			RedirectURL:  redirectURI,
			Endpoint:     endpoint,
			Scopes:       DefaultScopes,
		},
		GraphBaseURL: defaultGraphBaseURL,
		APIVersion:   version,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) configured() bool {
	return c.OAuth != nil && c.OAuth.ClientID != "" && c.OAuth.ClientSecret != ""
}

func (c *Client) AuthCodeURL(state string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if c.OAuth.RedirectURL == "" {
		return "", errors.New("META_REDIRECT_URI is not configured")
	}
	return c.OAuth.AuthCodeURL(state), nil
}

// Exchange trades the callback code for a short-lived user token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}
	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	return c.OAuth.Exchange(ctx, strings.TrimSpace(code))
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLived swaps a short-lived token for a ~60 day token.
func (c *Client) ExchangeLongLived(ctx context.Context, shortToken string) (*oauth2.Token, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.OAuth.ClientID)
	q.Set("client_secret", c.OAuth.ClientSecret)
	q.Set("fb_exchange_token", shortToken)

	var out tokenResponse
	if err := c.get(ctx, c.graphURL("oauth/access_token", q), &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("meta long-lived token exchange returned empty access token")
	}
	tok := &oauth2.Token{AccessToken: out.AccessToken, TokenType: out.TokenType}
	if out.ExpiresIn > 0 {
		tok.Expiry = time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// Session binds the client to one user access token.
type Session struct {
	client      *Client
	accessToken string
}

func (c *Client) Session(accessToken string) *Session {
	return &Session{client: c, accessToken: accessToken}
}

type AdAccount struct {
	ID            string `json:"id"`
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	AccountStatus int    `json:"account_status"`
}

type paging struct {
	Next string `json:"next"`
}

// ListAdAccounts returns every ad account visible to the token.
func (s *Session) ListAdAccounts(ctx context.Context) ([]AdAccount, error) {
	q := url.Values{}
	q.Set("fields", "id,account_id,name,account_status")
	q.Set("limit", "100")
	q.Set("access_token", s.accessToken)

	var accounts []AdAccount
	next := s.client.graphURL("me/adaccounts", q)
	for next != "" {
		var page struct {
			Data   []AdAccount `json:"data"`
			Paging paging      `json:"paging"`
		}
		if err := s.client.get(ctx, next, &page); err != nil {
			return nil, err
		}
		accounts = append(accounts, page.Data...)
		next = page.Paging.Next
	}
	return accounts, nil
}

// AccountPath prefixes a bare numeric account id with "act_".
func AccountPath(adAccountID string) string {
	id := strings.TrimSpace(adAccountID)
	if strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

func (c *Client) graphURL(path string, q url.Values) string {
	u := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.GraphBaseURL, "/"), c.APIVersion, strings.TrimLeft(path, "/"))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("meta graph decode failed: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Code = payload.Error.Code
		apiErr.Type = payload.Error.Type
		apiErr.Message = payload.Error.Message
	} else {
		apiErr.Message = strconv.Quote(string(body))
	}
	return apiErr
}

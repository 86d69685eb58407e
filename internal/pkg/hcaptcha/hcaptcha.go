// Package hcaptcha verifies registration captcha tokens against the hCaptcha siteverify API.
package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

const DefaultEndpoint = "https://hcaptcha.com/siteverify"

var (
	ErrEmptyToken = errors.New("hcaptcha: token is empty")
	ErrRejected   = errors.New("hcaptcha: validation failed")
)

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

type Verifier struct {
	Secret   string
	Endpoint string
	HTTP     *http.Client
}

// NewFromEnv returns nil when HCAPTCHA_SECRET is unset, which disables the check.
func NewFromEnv() *Verifier {
	secret := env.GetEnv("HCAPTCHA_SECRET", "")
	if secret == "" {
		return nil
	}
	return &Verifier{Secret: secret, Endpoint: DefaultEndpoint, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Verify checks token; remoteIP is optional.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrEmptyToken
	}
	form := url.Values{"secret": {v.Secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("hcaptcha: request failed: %w", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("hcaptcha: decode response: %w", err)
	}
	if !out.Success {
		if len(out.ErrorCodes) > 0 {
			return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ", "))
		}
		return ErrRejected
	}
	return nil
}

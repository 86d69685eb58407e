package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/cache"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
	"github.com/ManuelReschke/AdInsights/internal/pkg/googleads"
	"github.com/ManuelReschke/AdInsights/internal/pkg/ingestion"
	"github.com/ManuelReschke/AdInsights/internal/pkg/metaads"
	"github.com/ManuelReschke/AdInsights/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/AdInsights/internal/pkg/session"
	"github.com/ManuelReschke/AdInsights/internal/pkg/tokencrypt"
)

const (
	googleStateKey = "google_ads_oauth_state"
	metaStateKey   = "meta_ads_oauth_state"

	fetchLockTTL = 10 * time.Minute
	fetchTimeout = 5 * time.Minute

	// metaAccountActive is the Graph API account_status of usable ad accounts.
	metaAccountActive = 1
)

// GoogleAdsConnector is the part of the Google Ads client the controller needs.
type GoogleAdsConnector interface {
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Source(ctx context.Context, refreshToken string) (ingestion.GoogleSource, error)
}

// MetaAdsConnector is the part of the Meta Marketing API client the controller needs.
type MetaAdsConnector interface {
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	ExchangeLongLived(ctx context.Context, shortToken string) (*oauth2.Token, error)
	AdAccounts(ctx context.Context, accessToken string) ([]metaads.AdAccount, error)
	Source(accessToken string) ingestion.MetaSource
}

type googleAdsConnector struct{ *googleads.Client }

func (g googleAdsConnector) Source(ctx context.Context, refreshToken string) (ingestion.GoogleSource, error) {
	return g.Session(ctx, refreshToken)
}

// NewGoogleAdsConnector adapts the HTTP client.
func NewGoogleAdsConnector(c *googleads.Client) GoogleAdsConnector {
	return googleAdsConnector{c}
}

type metaAdsConnector struct{ *metaads.Client }

func (m metaAdsConnector) AdAccounts(ctx context.Context, accessToken string) ([]metaads.AdAccount, error) {
	return m.Session(accessToken).ListAdAccounts(ctx)
}

func (m metaAdsConnector) Source(accessToken string) ingestion.MetaSource {
	return m.Session(accessToken)
}

func NewMetaAdsConnector(c *metaads.Client) MetaAdsConnector {
	return metaAdsConnector{c}
}

type IntegrationController struct {
	integrations repository.IntegrationRepository
	runner       *ingestion.Runner
	codec        *tokencrypt.Codec
	google       GoogleAdsConnector
	meta         MetaAdsConnector
	now          Clock
}

func NewIntegrationController(repos *repository.Repositories, codec *tokencrypt.Codec, google GoogleAdsConnector, meta MetaAdsConnector, now Clock) *IntegrationController {
	now = now.orDefault()
	return &IntegrationController{
		integrations: repos.Integration,
		runner:       ingestion.NewRunner(repos.Fact, now),
		codec:        codec,
		google:       google,
		meta:         meta,
		now:          now,
	}
}

// HandleHub lists the user's integrations grouped by platform. Every platform has a key.
func (ic *IntegrationController) HandleHub(c *fiber.Ctx) error {
	list, err := ic.integrations.ListByUser(currentUserID(c))
	if err != nil {
		return serverError(c, "list integrations", err)
	}
	grouped := make(map[models.Platform][]models.Integration, len(models.Platforms))
	for _, p := range models.Platforms {
		grouped[p] = []models.Integration{}
	}
	for p, items := range lo.GroupBy(list, func(i models.Integration) models.Platform { return i.PlatformName }) {
		grouped[p] = items
	}
	return c.JSON(fiber.Map{
		"connected_platforms": grouped,
		"flash":               flash.Get(c),
	})
}

// loadIntegration returns the caller's integration of the given platform, or nil after
// a flash redirect has been written.
func (ic *IntegrationController) loadIntegration(c *fiber.Ctx, platform models.Platform) (*models.Integration, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, flash.Error(c, "Integration not found.", constants.IntegrationHubRoute)
	}
	integ, err := ic.integrations.GetForUser(currentUserID(c), uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && platform != "" && integ.PlatformName != platform) {
		return nil, flash.Error(c, "Integration not found.", constants.IntegrationHubRoute)
	}
	if err != nil {
		log.Errorf("load integration %d: %v", id, err)
		return nil, flash.Error(c, "An unexpected error occurred. Please try again later.", constants.IntegrationHubRoute)
	}
	return integ, nil
}

func selectAccountRoute(platform models.Platform, id uint) string {
	prefix := "/integration/googleads"
	if platform == models.PlatformMetaAds {
		prefix = "/integration/metaads"
	}
	return fmt.Sprintf("%s/select_account/%d", prefix, id)
}

// startOAuth stores a fresh state in the session and redirects to the consent screen.
func startOAuth(c *fiber.Ctx, stateKey, label string, authURL func(string) (string, error)) error {
	state := uuid.NewString()
	if err := session.SetSessionValue(c, stateKey, state); err != nil {
		log.Errorf("%s connect: store state: %v", label, err)
		return flash.Error(c, fmt.Sprintf("An unexpected error occurred during %s authentication. Please try again.", label), constants.IntegrationHubRoute)
	}
	target, err := authURL(state)
	if err != nil {
		log.Errorf("%s connect: %v", label, err)
		return flash.Error(c, fmt.Sprintf("%s is not configured on this server.", label), constants.IntegrationHubRoute)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

// exchangeCallback validates state and trades the code. On failure it writes the flash redirect
// and returns a nil token.
func exchangeCallback(c *fiber.Ctx, stateKey, label string, exchange func(context.Context, string) (*oauth2.Token, error)) (*oauth2.Token, error) {
	expected := session.PopSessionValue(c, stateKey)
	if e := c.Query("error"); e != "" {
		log.Warnf("%s callback: provider returned %s", label, e)
		return nil, flash.Error(c, fmt.Sprintf("%s: Authentication failed during token exchange (%s). Please try reconnecting.", label, e), constants.IntegrationHubRoute)
	}
	if expected == "" || c.Query("state") != expected {
		log.Warnf("%s callback: state mismatch", label)
		return nil, flash.Error(c, fmt.Sprintf("An unexpected error occurred during %s authentication. Please try again.", label), constants.IntegrationHubRoute)
	}
	tok, err := exchange(c.UserContext(), c.Query("code"))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			log.Warnf("%s callback: token exchange: %v", label, err)
			return nil, flash.Error(c, fmt.Sprintf("%s: Authentication failed during token exchange (%s). Please try reconnecting.", label, lo.Ternary(rerr.ErrorCode != "", rerr.ErrorCode, "invalid_grant")), constants.IntegrationHubRoute)
		}
		log.Errorf("%s callback: token exchange: %v", label, err)
		return nil, flash.Error(c, fmt.Sprintf("An unexpected error occurred during %s authentication. Please try again.", label), constants.IntegrationHubRoute)
	}
	return tok, nil
}

// grantedScopes reads the space or comma separated "scope" field of the token response.
func grantedScopes(tok *oauth2.Token) datatypes.JSON {
	raw, _ := tok.Extra("scope").(string)
	scopes := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' })
	if len(scopes) == 0 {
		return nil
	}
	b, _ := json.Marshal(scopes)
	return datatypes.JSON(b)
}

// upsertConnection stores the tokens on the user's integration for platform, creating it
// with a pending account selection when missing. It reports whether it was created.
func (ic *IntegrationController) upsertConnection(userID uint, platform models.Platform, tok *oauth2.Token) (*models.Integration, bool, error) {
	access, err := ic.codec.Encrypt(tok.AccessToken)
	if err != nil {
		return nil, false, err
	}
	refresh, err := ic.codec.Encrypt(tok.RefreshToken)
	if err != nil {
		return nil, false, err
	}
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expiry = &e
	}

	integ, err := ic.integrations.GetByUserAndPlatform(userID, platform)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		integ = &models.Integration{
			UserID:                userID,
			PlatformName:          platform,
			AdAccountID:           models.PendingAccountID,
			AdAccountName:         platform.Label() + " Account (Pending Selection)",
			AccessTokenEncrypted:  access,
			RefreshTokenEncrypted: refresh,
			TokenExpiry:           expiry,
			Scopes:                grantedScopes(tok),
			Status:                models.IntegrationStatusPending,
		}
		return integ, true, ic.integrations.Create(integ)
	}
	if err != nil {
		return nil, false, err
	}

	integ.AccessTokenEncrypted = access
	if refresh != "" {
		integ.RefreshTokenEncrypted = refresh
	}
	integ.TokenExpiry = expiry
	if scopes := grantedScopes(tok); scopes != nil {
		integ.Scopes = scopes
	}
	integ.Status = lo.Ternary(integ.NeedsAccountSelection(), models.IntegrationStatusPending, models.IntegrationStatusActive)
	return integ, false, ic.integrations.Update(integ)
}

func (ic *IntegrationController) HandleGoogleConnect(c *fiber.Ctx) error {
	return startOAuth(c, googleStateKey, "Google Ads", ic.google.AuthCodeURL)
}

func (ic *IntegrationController) HandleGoogleCallback(c *fiber.Ctx) error {
	tok, err := exchangeCallback(c, googleStateKey, "Google Ads", ic.google.Exchange)
	if tok == nil {
		return err
	}
	if tok.AccessToken == "" {
		return flash.Error(c, "Google Ads: Could not retrieve access token from Google. Please try again.", constants.IntegrationHubRoute)
	}

	integ, created, err := ic.upsertConnection(currentUserID(c), models.PlatformGoogleAds, tok)
	if err != nil {
		log.Errorf("google ads callback: save connection for user %d: %v", currentUserID(c), err)
		return flash.Error(c, "An error occurred while saving the Google Ads connection details.", constants.IntegrationHubRoute)
	}
	msg := lo.Ternary(created,
		"Google Ads connected successfully! Please select or confirm your ad account.",
		"Google Ads connection updated successfully with new tokens.")
	if integ.NeedsAccountSelection() {
		return flash.Success(c, msg, selectAccountRoute(models.PlatformGoogleAds, integ.ID))
	}
	return flash.Success(c, msg, constants.IntegrationHubRoute)
}

func (ic *IntegrationController) HandleMetaConnect(c *fiber.Ctx) error {
	return startOAuth(c, metaStateKey, "Meta Ads", ic.meta.AuthCodeURL)
}

// HandleMetaCallback swaps the short-lived token for a long-lived one and, when the user
// owns exactly one active ad account, selects it right away.
func (ic *IntegrationController) HandleMetaCallback(c *fiber.Ctx) error {
	tok, err := exchangeCallback(c, metaStateKey, "Meta Ads", ic.meta.Exchange)
	if tok == nil {
		return err
	}
	if tok.AccessToken == "" {
		return flash.Error(c, "Meta Ads: Could not retrieve a valid access token. Please try again.", constants.IntegrationHubRoute)
	}
	if long, err := ic.meta.ExchangeLongLived(c.UserContext(), tok.AccessToken); err != nil {
		log.Warnf("meta ads callback: long-lived exchange failed for user %d, keeping short-lived token: %v", currentUserID(c), err)
	} else {
		tok = long
	}

	userID := currentUserID(c)
	integ, created, err := ic.upsertConnection(userID, models.PlatformMetaAds, tok)
	if err != nil {
		log.Errorf("meta ads callback: save connection for user %d: %v", userID, err)
		return flash.Error(c, "An error occurred while saving the Meta Ads connection details.", constants.IntegrationHubRoute)
	}

	if integ.NeedsAccountSelection() {
		accounts, err := ic.activeMetaAccounts(c.UserContext(), tok.AccessToken)
		if err != nil {
			log.Warnf("meta ads callback: list ad accounts for integration %d: %v", integ.ID, err)
		} else if len(accounts) == 1 {
			if err := ic.activate(integ, accounts[0].AccountID, accounts[0].Name); err != nil {
				log.Errorf("meta ads callback: activate integration %d: %v", integ.ID, err)
				return flash.Error(c, "An error occurred while saving your ad account selection. Please try again.", constants.IntegrationHubRoute)
			}
			return flash.Success(c, fmt.Sprintf("Meta Ads account '%s' connected and activated successfully!", integ.AdAccountName), constants.IntegrationHubRoute)
		}
	}

	msg := lo.Ternary(created,
		"Meta Ads connected successfully! Please select your ad account.",
		"Meta Ads connection updated successfully.")
	if integ.NeedsAccountSelection() {
		return flash.Success(c, msg, selectAccountRoute(models.PlatformMetaAds, integ.ID))
	}
	return flash.Success(c, msg, constants.IntegrationHubRoute)
}

func (ic *IntegrationController) activeMetaAccounts(ctx context.Context, accessToken string) ([]metaads.AdAccount, error) {
	accounts, err := ic.meta.AdAccounts(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return lo.Filter(accounts, func(a metaads.AdAccount, _ int) bool {
		return a.AccountStatus == metaAccountActive
	}), nil
}

func (ic *IntegrationController) activate(integ *models.Integration, accountID, name string) error {
	integ.AdAccountID = accountID
	integ.AdAccountName = name
	integ.Status = models.IntegrationStatusActive
	return ic.integrations.Update(integ)
}

func alreadySelected(integ *models.Integration) bool {
	return integ.IsActive() && !integ.NeedsAccountSelection()
}

// HandleMetaSelectAccount lists the active ad accounts (GET) or stores the chosen one (POST).
func (ic *IntegrationController) HandleMetaSelectAccount(c *fiber.Ctx) error {
	integ, err := ic.loadIntegration(c, models.PlatformMetaAds)
	if integ == nil {
		return err
	}
	if alreadySelected(integ) {
		return flash.Info(c, "Meta Ads account has already been selected and is active for this integration.", constants.IntegrationHubRoute)
	}

	token, err := ic.codec.Decrypt(integ.AccessTokenEncrypted)
	if err != nil || token == "" {
		return flash.Error(c, "Access token for Meta Ads is missing or invalid. Please reconnect the integration.", constants.IntegrationHubRoute)
	}
	accounts, err := ic.activeMetaAccounts(c.UserContext(), token)
	if err != nil {
		log.Errorf("meta ads select account: list for integration %d: %v", integ.ID, err)
		if metaads.IsTokenExpired(err) {
			_ = ic.integrations.UpdateStatus(integ.ID, models.IntegrationStatusExpired)
		}
		return flash.Error(c, "Error fetching Meta Ad accounts from Facebook. Please ensure your connection has 'ads_read' and potentially 'business_management' permissions, and that the token is valid.", constants.IntegrationHubRoute)
	}

	if c.Method() != fiber.MethodPost {
		type accountOption struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		return c.JSON(fiber.Map{
			"integration": integ,
			"accounts": lo.Map(accounts, func(a metaads.AdAccount, _ int) accountOption {
				return accountOption{ID: a.AccountID, Name: a.Name}
			}),
			"flash": flash.Get(c),
		})
	}

	selected := strings.TrimSpace(c.FormValue("ad_account_id"))
	if selected == "" {
		return flash.Error(c, "No ad account was selected. Please choose an account.", selectAccountRoute(models.PlatformMetaAds, integ.ID))
	}
	account, ok := lo.Find(accounts, func(a metaads.AdAccount) bool { return a.AccountID == selected || a.ID == selected })
	if !ok {
		return flash.Error(c, "The selected ad account is not available for this connection. Please choose an account from the list.", selectAccountRoute(models.PlatformMetaAds, integ.ID))
	}
	name := lo.Ternary(account.Name != "", account.Name, "Meta Ad Account "+account.AccountID)
	if err := ic.activate(integ, account.AccountID, name); err != nil {
		log.Errorf("meta ads select account: save integration %d: %v", integ.ID, err)
		return flash.Error(c, "An error occurred while saving your ad account selection. Please try again.", constants.IntegrationHubRoute)
	}
	return flash.Success(c, fmt.Sprintf("Meta Ads account '%s' connected and activated successfully!", name), constants.IntegrationHubRoute)
}

// HandleGoogleSelectAccount shows the integration (GET) or links a customer id (POST).
func (ic *IntegrationController) HandleGoogleSelectAccount(c *fiber.Ctx) error {
	integ, err := ic.loadIntegration(c, models.PlatformGoogleAds)
	if integ == nil {
		return err
	}
	if alreadySelected(integ) {
		return flash.Info(c, "Google Ads Customer ID has already been provided and is active for this integration.", constants.IntegrationHubRoute)
	}
	if c.Method() != fiber.MethodPost {
		return c.JSON(fiber.Map{"integration": integ, "flash": flash.Get(c)})
	}

	input := c.FormValue("customer_id")
	if !googleads.ValidCustomerID(input) {
		return flash.Error(c, "Invalid Google Ads Customer ID format. Please use the format xxx-xxx-xxxx (e.g., 123-456-7890).", selectAccountRoute(models.PlatformGoogleAds, integ.ID))
	}
	id := googleads.NormalizeCustomerID(input)
	formatted := googleads.FormatCustomerID(id)
	if err := ic.activate(integ, id, "Google Ads Account "+formatted); err != nil {
		log.Errorf("google ads select account: save integration %d: %v", integ.ID, err)
		return flash.Error(c, "An error occurred while saving your Google Ads Customer ID. Please try again.", constants.IntegrationHubRoute)
	}
	return flash.Success(c, fmt.Sprintf("Google Ads Customer ID %s linked and activated successfully!", formatted), constants.IntegrationHubRoute)
}

// HandleDisconnect revokes the integration and drops its tokens. Stored facts are kept
// but no longer show up since reads only consider active integrations.
func (ic *IntegrationController) HandleDisconnect(c *fiber.Ctx) error {
	integ, err := ic.loadIntegration(c, "")
	if integ == nil {
		return err
	}
	integ.AccessTokenEncrypted = ""
	integ.RefreshTokenEncrypted = ""
	integ.TokenExpiry = nil
	integ.Status = models.IntegrationStatusRevoked
	if err := ic.integrations.Update(integ); err != nil {
		log.Errorf("disconnect integration %d: %v", integ.ID, err)
		return flash.Error(c, "An unexpected error occurred. Please try again later.", constants.IntegrationHubRoute)
	}
	return flash.Success(c, integ.PlatformName.Label()+" has been disconnected.", constants.IntegrationHubRoute)
}

// withFetchLock runs fn while holding the per-integration fetch lock. A held lock counts as skipped.
func (ic *IntegrationController) withFetchLock(c *fiber.Ctx, integ *models.Integration, fn func(ctx context.Context) error) error {
	lock, err := cache.AcquireLock(fmt.Sprintf("fetch:lock:%d", integ.ID), uuid.NewString(), fetchLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Warning(c, "A data fetch for this integration is already running. Please wait until it has finished.", constants.IntegrationHubRoute)
	}
	if err != nil {
		log.Errorf("fetch lock for integration %d: %v", integ.ID, err)
		return flash.Error(c, "An unexpected error occurred. Please try again later.", constants.IntegrationHubRoute)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnf("release fetch lock for integration %d: %v", integ.ID, err)
		}
	}()

	ctx, cancel := context.WithTimeout(c.UserContext(), fetchTimeout)
	defer cancel()
	return fn(ctx)
}

func (ic *IntegrationController) recordFetch(platform models.Platform, outcome string) {
	if err := counter.AddFetch(platform, outcome, ic.now()); err != nil {
		log.Warnf("record %s fetch outcome %s: %v", platform, outcome, err)
	}
}

func (ic *IntegrationController) markFetched(integ *models.Integration) {
	if err := ic.integrations.MarkFetched(integ.ID, ic.now().UTC()); err != nil {
		log.Warnf("mark integration %d fetched: %v", integ.ID, err)
	}
}

// HandleGoogleFetch pulls the trailing seven days of Google Ads data.
func (ic *IntegrationController) HandleGoogleFetch(c *fiber.Ctx) error {
	integ, err := ic.loadIntegration(c, models.PlatformGoogleAds)
	if integ == nil {
		return err
	}
	if integ.NeedsAccountSelection() {
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Warning(c, "A Google Ads Customer ID must be provided for this integration before fetching data. Please update the integration settings.", constants.IntegrationHubRoute)
	}
	refresh, err := ic.codec.Decrypt(integ.RefreshTokenEncrypted)
	if err != nil {
		log.Errorf("google ads fetch: decrypt refresh token of integration %d: %v", integ.ID, err)
		refresh = ""
	}
	src, err := ic.google.Source(c.UserContext(), refresh)
	switch {
	case errors.Is(err, googleads.ErrMissingDevToken):
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Error(c, "The Google Ads Developer Token is not configured in the application. Data fetching is disabled.", constants.IntegrationHubRoute)
	case errors.Is(err, googleads.ErrMissingRefreshToken):
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Error(c, "The refresh token for Google Ads is missing. Please reconnect the Google Ads account to ensure continued data access.", constants.IntegrationHubRoute)
	case err != nil:
		log.Errorf("google ads fetch: session for integration %d: %v", integ.ID, err)
		return flash.Error(c, fmt.Sprintf("An unexpected error occurred while fetching Google Ads data: %v. Please try again later or contact support.", err), constants.IntegrationHubRoute)
	}

	return ic.withFetchLock(c, integ, func(ctx context.Context) error {
		_, err := ic.runner.FetchGoogle(ctx, integ, src)
		if err == nil {
			ic.recordFetch(integ.PlatformName, counter.OutcomeSuccess)
			ic.markFetched(integ)
			return flash.Success(c, fmt.Sprintf("Google Ads data, including all breakdowns and overall daily totals, fetched and saved successfully for ad account '%s'.", integ.DisplayAccountName()), constants.IntegrationHubRoute)
		}

		ic.recordFetch(integ.PlatformName, counter.OutcomeFailed)
		log.Errorf("google ads fetch for integration %d: %v", integ.ID, err)
		var rerr *oauth2.RetrieveError
		var apiErr *googleads.APIError
		switch {
		case errors.Is(err, ingestion.ErrStore):
			return flash.Error(c, "Error saving a batch of Google Ads breakdown data. Some data may not have been saved. Please try fetching again.", constants.IntegrationHubRoute)
		case errors.As(err, &rerr):
			if uerr := ic.integrations.UpdateStatus(integ.ID, models.IntegrationStatusExpired); uerr != nil {
				log.Warnf("mark integration %d expired: %v", integ.ID, uerr)
			}
			return flash.Error(c, "The refresh token for Google Ads is missing. Please reconnect the Google Ads account to ensure continued data access.", constants.IntegrationHubRoute)
		case errors.As(err, &apiErr):
			return flash.Error(c, "A Google Ads API error occurred while fetching data. Please ensure your Developer Token is valid, the Google Ads API is enabled for your project, and the account has API access. Check server logs for detailed error messages.", constants.IntegrationHubRoute)
		}
		return flash.Error(c, fmt.Sprintf("An unexpected error occurred while fetching Google Ads data: %v. Please try again later or contact support.", err), constants.IntegrationHubRoute)
	})
}

// HandleMetaFetch pulls the trailing seven days of Meta Ads data, one breakdown at a time.
func (ic *IntegrationController) HandleMetaFetch(c *fiber.Ctx) error {
	integ, err := ic.loadIntegration(c, models.PlatformMetaAds)
	if integ == nil {
		return err
	}
	if integ.NeedsAccountSelection() {
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Warning(c, "Please select an ad account for this Meta Ads integration before fetching data.", constants.IntegrationHubRoute)
	}
	token, err := ic.codec.Decrypt(integ.AccessTokenEncrypted)
	if err != nil || token == "" {
		ic.recordFetch(integ.PlatformName, counter.OutcomeSkipped)
		return flash.Error(c, "Access token for Meta Ads is missing or invalid. Please reconnect the integration.", constants.IntegrationHubRoute)
	}

	return ic.withFetchLock(c, integ, func(ctx context.Context) error {
		name := integ.DisplayAccountName()
		res, err := ic.runner.FetchMeta(ctx, integ, ic.meta.Source(token))
		if err != nil {
			ic.recordFetch(integ.PlatformName, counter.OutcomeFailed)
			log.Errorf("meta ads fetch for integration %d: %v", integ.ID, err)
			switch {
			case metaads.IsTokenExpired(err):
				if uerr := ic.integrations.UpdateStatus(integ.ID, models.IntegrationStatusExpired); uerr != nil {
					log.Warnf("mark integration %d expired: %v", integ.ID, uerr)
				}
				return flash.Error(c, "Access token for Meta Ads is missing or invalid. Please reconnect the integration.", constants.IntegrationHubRoute)
			case errors.Is(err, ingestion.ErrStore):
				return flash.Error(c, "Error saving aggregated 'overall' daily totals for Meta Ads. Other breakdown data might have been saved.", constants.IntegrationHubRoute)
			}
			return flash.Error(c, fmt.Sprintf("Meta Ads data fetch for '%s' encountered issues. Some or all data may be missing.", name), constants.IntegrationHubRoute)
		}

		ic.markFetched(integ)
		switch {
		case res.NoDeviceData():
			ic.recordFetch(integ.PlatformName, lo.Ternary(res.Partial(), counter.OutcomePartial, counter.OutcomeSuccess))
			return flash.Info(c, fmt.Sprintf("Meta Ads data fetch completed for '%s'. Note: Overall totals could not be calculated as no device-specific data was found for aggregation.", name), constants.IntegrationHubRoute)
		case res.Partial():
			ic.recordFetch(integ.PlatformName, counter.OutcomePartial)
			return flash.Warning(c, fmt.Sprintf("Meta Ads data fetch for '%s' completed, but some breakdown data may have encountered issues. Overall totals calculated based on available data.", name), constants.IntegrationHubRoute)
		}
		ic.recordFetch(integ.PlatformName, counter.OutcomeSuccess)
		return flash.Success(c, fmt.Sprintf("Meta Ads data fetch (including all breakdowns and overall daily totals) completed successfully for ad account '%s'.", name), constants.IntegrationHubRoute)
	})
}

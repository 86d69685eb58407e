package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/constants"
	"github.com/ManuelReschke/AdInsights/internal/pkg/entitlements"
	"github.com/ManuelReschke/AdInsights/internal/pkg/flash"
	"github.com/ManuelReschke/AdInsights/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/AdInsights/internal/pkg/session"
	"github.com/ManuelReschke/AdInsights/internal/pkg/statistics"
	"github.com/ManuelReschke/AdInsights/internal/pkg/usercontext"
)

type AuthController struct {
	users         repository.UserRepository
	subscriptions entitlements.SubscriptionSource
	captcha       *hcaptcha.Verifier
	siteKey       string
	now           Clock
}

// NewAuthController wires the auth handlers. A nil captcha disables the registration check.
func NewAuthController(users repository.UserRepository, subscriptions entitlements.SubscriptionSource, captcha *hcaptcha.Verifier, siteKey string, now Clock) *AuthController {
	return &AuthController{users: users, subscriptions: subscriptions, captcha: captcha, siteKey: siteKey, now: now.orDefault()}
}

type loginForm struct {
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required"`
}

type registerForm struct {
	Name            string `form:"full_name" json:"full_name" validate:"required,max=150"`
	Email           string `form:"email" json:"email" validate:"required,email,max=200"`
	Password        string `form:"password" json:"password" validate:"required,min=8"`
	PasswordConfirm string `form:"password_confirm" json:"password_confirm" validate:"required,eqfield=Password"`
	Captcha         string `form:"h-captcha-response" json:"h-captcha-response"`
}

var formValidator = validator.New()

func (ac *AuthController) formPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"flash": flash.Get(c), "hcaptcha_sitekey": ac.siteKey})
}

func (ac *AuthController) HandleLoginPage(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return ac.formPage(c)
}

func (ac *AuthController) HandleLogin(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	var form loginForm
	if err := c.BodyParser(&form); err != nil || formValidator.Struct(&form) != nil {
		return flash.Error(c, "Please enter a valid email address and password.", constants.LoginRoute)
	}

	user, err := ac.users.GetByEmail(form.Email)
	if err != nil || !user.CheckPassword(form.Password) {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("login: lookup %s: %v", form.Email, err)
		}
		log.Warnf("Failed login attempt for email: %s due to invalid credentials.", form.Email)
		return flash.Error(c, "Invalid email or password. Please try again.", constants.LoginRoute)
	}
	if !user.IsActive() {
		return flash.Error(c, "Your account is not active. Please contact support.", constants.LoginRoute)
	}

	if err := ac.startSession(c, user); err != nil {
		return serverError(c, "login session", err)
	}
	log.Infof("User %s logged in successfully.", user.Email)

	if next := c.Query("next"); isSafeRedirect(next) {
		return c.Redirect(next, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

// isSafeRedirect accepts local absolute paths only.
func isSafeRedirect(next string) bool {
	return strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.Contains(next, `\`)
}

func (ac *AuthController) HandleRegisterPage(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return ac.formPage(c)
}

func (ac *AuthController) HandleRegister(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	var form registerForm
	if err := c.BodyParser(&form); err != nil {
		return flash.Error(c, "Please fill in all required fields.", constants.RegisterRoute)
	}
	if err := formValidator.Struct(&form); err != nil {
		return flash.Error(c, registerValidationMessage(err), constants.RegisterRoute)
	}

	if ac.captcha != nil {
		if err := ac.captcha.Verify(c.UserContext(), form.Captcha, c.IP()); err != nil {
			log.Warnf("register: captcha for %s: %v", form.Email, err)
			return flash.Error(c, "Please complete the captcha.", constants.RegisterRoute)
		}
	}

	if _, err := ac.users.GetByEmail(form.Email); err == nil {
		log.Warnf("Registration failed for email %s: email already exists.", form.Email)
		return flash.Error(c, "That email address is already registered. Please use a different email or log in.", constants.RegisterRoute)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("register: lookup %s: %v", form.Email, err)
		return flash.Error(c, "An error occurred during registration. Please try again later.", constants.RegisterRoute)
	}

	user, err := models.CreateUser(form.Name, form.Email, form.Password)
	if err == nil {
		err = ac.users.Create(user)
	}
	if err != nil {
		log.Errorf("Error during registration for %s: %v", form.Email, err)
		return flash.Error(c, "An error occurred during registration. Please try again later.", constants.RegisterRoute)
	}
	statistics.ResetCacheUpdateTimer()

	if err := ac.startSession(c, user); err != nil {
		return serverError(c, "register session", err)
	}
	log.Infof("New user registered: %s", user.Email)
	return flash.Success(c, "Congratulations, you are now a registered user!", constants.ProfileRoute)
}

func registerValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Please fill in all required fields."
	}
	switch verrs[0].Field() {
	case "Email":
		return "Please enter a valid email address."
	case "Password":
		return "Password must be at least 8 characters long."
	case "PasswordConfirm":
		return "Passwords must match."
	}
	return "Please enter your full name."
}

func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if store := session.GetSessionStore(); store != nil {
		if sess, err := store.Get(c); err == nil {
			if err := sess.Destroy(); err != nil {
				log.Errorf("logout: destroy session: %v", err)
			}
		}
	}
	log.Infof("User %d logged out.", currentUserID(c))
	return flash.Info(c, "You have been logged out successfully.", constants.LoginRoute)
}

// HandleProfile returns the account with its entitling subscription.
func (ac *AuthController) HandleProfile(c *fiber.Ctx) error {
	user, err := ac.users.GetByID(currentUserID(c))
	if err != nil {
		return serverError(c, "load profile", err)
	}
	resp := fiber.Map{"user": user, "display_name": user.DisplayName(), "subscription": nil, "flash": flash.Get(c)}
	sub, err := ac.subscriptions.CurrentSubscription(user.ID)
	switch {
	case err == nil:
		resp["subscription"] = sub
	case !errors.Is(err, billing.ErrSubscriptionNotFound):
		return serverError(c, "load profile subscription", err)
	}
	return c.JSON(resp)
}

// HandleProviderLogin starts the goth flow for /auth/:provider.
func (ac *AuthController) HandleProviderLogin(c *fiber.Ctx) error {
	if isLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return gothfiber.BeginAuthHandler(c)
}

func providerLabel(provider string) string {
	if provider == models.LoginProviderFacebook {
		return "Meta"
	}
	return titleWords(provider)
}

// HandleProviderCallback logs in the user behind a provider identity, linking it to an
// existing account by email or creating a new one.
func (ac *AuthController) HandleProviderCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	label := providerLabel(provider)

	gu, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("%s login failed: %v", label, err)
		return flash.Error(c, "Authentication failed with "+label+". Please try again.", constants.LoginRoute)
	}
	if gu.UserID == "" {
		return flash.Error(c, "Could not retrieve your "+label+" ID. Authentication failed. Please try again.", constants.LoginRoute)
	}

	user, err := ac.users.GetByProviderAccount(gu.Provider, gu.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("%s login: lookup identity %s: %v", label, gu.UserID, err)
		return flash.Error(c, "An unexpected error occurred during "+label+" authentication. Please try again.", constants.LoginRoute)
	}
	if user == nil {
		if gu.Email == "" {
			return flash.Error(c, "Email not provided by "+label+". Cannot create or link account without an email address.", constants.LoginRoute)
		}
		user, err = ac.linkIdentity(gu)
		if err != nil {
			log.Errorf("%s login: link identity %s: %v", label, gu.UserID, err)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return flash.Error(c, "This "+label+" account appears to be associated with another user, or the email is already in use by a different account. Please log in with your existing credentials or contact support.", constants.LoginRoute)
			}
			return flash.Error(c, "An error occurred while linking your "+label+" account. Please try again or contact support.", constants.LoginRoute)
		}
	}
	if !user.IsActive() {
		return flash.Error(c, "Your account is not active. Please contact support.", constants.LoginRoute)
	}

	if err := ac.startSession(c, user); err != nil {
		return serverError(c, "provider session", err)
	}
	log.Infof("User %s logged in with %s.", user.Email, label)
	return flash.Success(c, "Successfully logged in with "+label+"!", constants.DashboardRoute)
}

// linkIdentity attaches the provider identity to the account with the same email, creating
// the account first when none exists. Created accounts get an unusable random password.
func (ac *AuthController) linkIdentity(gu goth.User) (*models.User, error) {
	user, err := ac.users.GetByEmail(gu.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		name := gu.Name
		if name == "" {
			name = gu.NickName
		}
		user, err = models.CreateUser(name, gu.Email, "oauth-"+uuid.NewString())
		if err == nil {
			err = ac.users.Create(user)
		}
		if err == nil {
			statistics.ResetCacheUpdateTimer()
		}
	}
	if err != nil {
		return nil, err
	}
	err = ac.users.LinkProviderAccount(&models.ProviderAccount{
		UserID:         user.ID,
		Provider:       gu.Provider,
		ProviderUserID: gu.UserID,
		Email:          gu.Email,
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// startSession writes the login keys read by the user context middleware.
func (ac *AuthController) startSession(c *fiber.Ctx, user *models.User) error {
	store := session.GetSessionStore()
	if store == nil {
		return errors.New("session store not initialized")
	}
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	sess.Set(usercontext.KeyUsername, user.DisplayName())
	sess.Set(usercontext.KeyIsAdmin, user.IsAdmin())
	if err := sess.Save(); err != nil {
		return err
	}
	if err := ac.users.UpdateLastLogin(user.ID, ac.now()); err != nil {
		log.Warnf("update last login for user %d: %v", user.ID, err)
	}
	return nil
}

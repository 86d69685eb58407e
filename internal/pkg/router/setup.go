package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/controllers"
	"github.com/ManuelReschke/AdInsights/app/repository"
	"github.com/ManuelReschke/AdInsights/internal/pkg/billing"
	"github.com/ManuelReschke/AdInsights/internal/pkg/database"
	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
	"github.com/ManuelReschke/AdInsights/internal/pkg/googleads"
	"github.com/ManuelReschke/AdInsights/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/AdInsights/internal/pkg/metaads"
	"github.com/ManuelReschke/AdInsights/internal/pkg/oauth"
	"github.com/ManuelReschke/AdInsights/internal/pkg/tokencrypt"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers holds every handler set the routers mount.
type Controllers struct {
	Auth         *controllers.AuthController
	Dashboard    *controllers.DashboardController
	Insights     *controllers.InsightsController
	Optimization *controllers.OptimizationController
	Integration  *controllers.IntegrationController
	Billing      *controllers.BillingController
	Admin        *controllers.AdminController

	// Subscriptions gates the insight APIs and the profile page.
	Subscriptions *billing.Service
}

// NewControllers builds the controllers from a database handle and the environment.
// A missing Stripe key leaves billing in read-only mode; a missing Fernet key is fatal.
func NewControllers(db *gorm.DB, now controllers.Clock) *Controllers {
	factory := repository.InitializeFactory(db)
	repos := factory.GetRepositories()

	codec, err := tokencrypt.NewCodecFromEnv()
	if err != nil {
		log.Fatalf("[Router] token cipher: %v", err)
	}

	var gateway billing.Gateway
	if g, err := billing.NewStripeGatewayFromEnv(); err == nil {
		gateway = g
	} else {
		log.Printf("[Router] Stripe disabled: %v", err)
	}
	subscriptions := billing.NewService(billing.NewRepository(factory.DB()), gateway, now)

	return &Controllers{
		Auth:         controllers.NewAuthController(repos.User, subscriptions, hcaptcha.NewFromEnv(), env.GetEnv("HCAPTCHA_SITEKEY", ""), now),
		Dashboard:    controllers.NewDashboardController(repos, now),
		Insights:     controllers.NewInsightsController(repos.Fact, now),
		Optimization: controllers.NewOptimizationController(),
		Integration: controllers.NewIntegrationController(repos, codec,
			controllers.NewGoogleAdsConnector(googleads.NewClientFromEnv()),
			controllers.NewMetaAdsConnector(metaads.NewClientFromEnv()),
			now),
		Billing:       controllers.NewBillingController(subscriptions, repos.User, env.GetEnv("STRIPE_WEBHOOK_SECRET", ""), oauth.BaseURL()),
		Admin:         controllers.NewAdminController(db, now),
		Subscriptions: subscriptions,
	}
}

func InstallRouter(app *fiber.App) {
	ctrl := NewControllers(database.GetDB(), time.Now)
	// The HTTP router first: it sets up the session store, the login providers and
	// the user context middleware the API routes depend on.
	setup(app, NewHttpRouter(ctrl), NewApiRouter(ctrl))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

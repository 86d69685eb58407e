package constants

// Page routes used as redirect targets.
const (
	LoginRoute           = "/login"
	RegisterRoute        = "/register"
	ProfileRoute         = "/profile"
	DashboardRoute       = "/dashboard"
	IntegrationHubRoute  = "/integration/"
	PlansRoute           = "/subscription-plans"
	SubscriptionRoute    = "/billing/subscription"
	CheckoutSuccessRoute = "/billing/checkout-success"
	CheckoutCancelRoute  = "/billing/checkout-cancel"
)

// Package entitlements decides which product areas a user may open based on their subscription.
package entitlements

import (
	"errors"
	"time"

	"github.com/ManuelReschke/AdInsights/app/models"
)

// ErrNoSubscription is returned by sources when a user has no entitling subscription.
var ErrNoSubscription = errors.New("no entitling subscription")

// SubscriptionSource finds the newest active, trialing or past_due subscription of a user.
type SubscriptionSource interface {
	CurrentSubscription(userID uint) (*models.Subscription, error)
}

// Access is the resolved entitlement of one user.
type Access struct {
	Subscribed bool
	PlanName   string
	Status     string
	EndsAt     *time.Time
}

// Allows reports whether the access covers one of the named plans. No names means any plan.
func (a Access) Allows(planNames ...string) bool {
	if !a.Subscribed {
		return false
	}
	if len(planNames) == 0 {
		return true
	}
	for _, name := range planNames {
		if name == a.PlanName {
			return true
		}
	}
	return false
}

// Resolve loads the user's subscription. isNotFound tells a missing subscription apart from a lookup failure.
func Resolve(src SubscriptionSource, userID uint, isNotFound func(error) bool) (Access, error) {
	sub, err := src.CurrentSubscription(userID)
	if err != nil {
		if errors.Is(err, ErrNoSubscription) || (isNotFound != nil && isNotFound(err)) {
			return Access{}, nil
		}
		return Access{}, err
	}
	if sub == nil || !models.IsEntitlingSubscriptionStatus(sub.Status) {
		return Access{}, nil
	}
	a := Access{Subscribed: true, Status: sub.Status, EndsAt: sub.EndDate}
	if sub.Plan != nil {
		a.PlanName = sub.Plan.Name
	}
	return a, nil
}

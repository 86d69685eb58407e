package models

import (
	"strings"
	"time"
)

const (
	SubscriptionStatusTrialing          = "trialing"
	SubscriptionStatusActive            = "active"
	SubscriptionStatusPastDue           = "past_due"
	SubscriptionStatusCancelled         = "cancelled"
	SubscriptionStatusIncomplete        = "incomplete"
	SubscriptionStatusIncompleteExpired = "incomplete_expired"
	SubscriptionStatusUnpaid            = "unpaid"
)

// Subscription mirrors one Stripe subscription. EndDate is the paid-through instant or the trial end.
type Subscription struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	UserID               uint              `gorm:"not null;index" json:"user_id"`
	PlanID               uint              `gorm:"not null;index" json:"plan_id"`
	Plan                 *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	StartDate            time.Time         `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate              *time.Time        `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	Status               string            `gorm:"type:varchar(50);not null;default:'incomplete';index" json:"status"`
	StripeSubscriptionID string            `gorm:"type:varchar(120);not null;uniqueIndex" json:"stripe_subscription_id"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "user_subscriptions"
}

// IsTerminalSubscriptionStatus reports whether no further transition out of the status is expected.
func IsTerminalSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusCancelled, SubscriptionStatusIncompleteExpired:
		return true
	}
	return false
}

// IsEntitlingSubscriptionStatus reports whether the status grants product access.
func IsEntitlingSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// SubscriptionStatusFromStripe maps a Stripe status string to the local vocabulary.
// Stripe spells "canceled"; unknown values map to incomplete.
func SubscriptionStatusFromStripe(s string) string {
	switch strings.ToLower(s) {
	case "trialing":
		return SubscriptionStatusTrialing
	case "active":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled", "cancelled":
		return SubscriptionStatusCancelled
	case "incomplete_expired":
		return SubscriptionStatusIncompleteExpired
	case "unpaid":
		return SubscriptionStatusUnpaid
	}
	return SubscriptionStatusIncomplete
}

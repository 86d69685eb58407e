package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SubscriptionPlan is a catalog entry. Plans are managed by migrations/admins, not at runtime.
type SubscriptionPlan struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Features      datatypes.JSON  `gorm:"type:json" json:"features"`
	StripePriceID *string         `gorm:"type:varchar(100);uniqueIndex" json:"stripe_price_id,omitempty"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FeatureList decodes the JSON feature column. Invalid JSON yields an empty list.
func (p *SubscriptionPlan) FeatureList() []string {
	if len(p.Features) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(p.Features, &out); err != nil {
		return nil
	}
	return out
}

// Purchasable reports whether the plan can be bought through checkout.
func (p *SubscriptionPlan) Purchasable() bool {
	return p.StripePriceID != nil && *p.StripePriceID != ""
}

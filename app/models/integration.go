package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	IntegrationStatusPending = "pending"
	IntegrationStatusActive  = "active"
	IntegrationStatusRevoked = "revoked"
	IntegrationStatusExpired = "expired"
	IntegrationStatusError   = "error"
)

// PendingAccountID marks an integration whose ad account has not been chosen yet.
const PendingAccountID = "pending_selection"

// Integration is the OAuth connection of one user to one ad platform account.
// Token columns hold ciphertext only; callers encrypt and decrypt through tokencrypt.
type Integration struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	UserID                uint           `gorm:"not null;index:ux_integrations_user_platform,unique,priority:1" json:"user_id"`
	PlatformName          Platform       `gorm:"type:varchar(50);not null;index:ux_integrations_user_platform,unique,priority:2" json:"platform_name"`
	AdAccountID           string         `gorm:"type:varchar(255);not null;default:'pending_selection'" json:"ad_account_id"`
	AdAccountName         string         `gorm:"type:varchar(255)" json:"ad_account_name"`
	AccessTokenEncrypted  string         `gorm:"type:text" json:"-"`
	RefreshTokenEncrypted string         `gorm:"type:text" json:"-"`
	TokenExpiry           *time.Time     `gorm:"type:timestamp;default:null" json:"token_expiry,omitempty"`
	Scopes                datatypes.JSON `gorm:"type:json" json:"scopes"`
	Status                string         `gorm:"type:varchar(50);not null;default:'pending';index" json:"status"`
	LastFetchedAt         *time.Time     `gorm:"type:timestamp;default:null" json:"last_fetched_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Integration) IsActive() bool {
	return i.Status == IntegrationStatusActive
}

// NeedsAccountSelection reports whether the user still has to pick an ad account.
func (i *Integration) NeedsAccountSelection() bool {
	return i.AdAccountID == "" || i.AdAccountID == PendingAccountID
}

// DisplayAccountName prefers the vendor name and falls back to the account id.
func (i *Integration) DisplayAccountName() string {
	if i.AdAccountName != "" {
		return i.AdAccountName
	}
	return i.AdAccountID
}

// TokenExpired reports whether the stored access token expiry lies before now.
func (i *Integration) TokenExpired(now time.Time) bool {
	return i.TokenExpiry != nil && i.TokenExpiry.Before(now)
}

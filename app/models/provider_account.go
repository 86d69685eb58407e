package models

import "time"

const (
	LoginProviderGoogle   = "google"
	LoginProviderFacebook = "facebook"
)

// ProviderAccount links a login identity (google, facebook) to a user.
// Ad-platform connections are stored separately as Integration rows.
type ProviderAccount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index" json:"user_id"`
	Provider       string    `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string    `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	Email          string    `gorm:"type:varchar(200)" json:"email"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

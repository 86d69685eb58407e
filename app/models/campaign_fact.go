package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	BreakdownOverall  = "overall"
	BreakdownDevice   = "device"
	BreakdownCountry  = "country"
	BreakdownAgeRange = "age_range"
	BreakdownGender   = "gender"

	// BreakdownValueNone is the breakdown value of overall rows.
	BreakdownValueNone = "N/A"
)

// CampaignFact is one daily metric row of a campaign for a single breakdown value.
// (integration, campaign, date, breakdown type, breakdown value) is unique.
type CampaignFact struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	IntegrationID        uint            `gorm:"not null;index:uq_campaign_daily_breakdown_metric,unique,priority:1" json:"integration_id"`
	Platform             Platform        `gorm:"type:varchar(50);not null;index" json:"platform"`
	CampaignIDPlatform   string          `gorm:"type:varchar(255);not null;index:uq_campaign_daily_breakdown_metric,unique,priority:2" json:"campaign_id_platform"`
	CampaignNamePlatform string          `gorm:"type:varchar(255)" json:"campaign_name_platform"`
	Date                 time.Time       `gorm:"type:date;not null;index:uq_campaign_daily_breakdown_metric,unique,priority:3;index" json:"date"`
	BreakdownType        string          `gorm:"type:varchar(50);not null;default:'overall';index:uq_campaign_daily_breakdown_metric,unique,priority:4" json:"breakdown_type"`
	BreakdownValue       string          `gorm:"type:varchar(255);not null;default:'N/A';index:uq_campaign_daily_breakdown_metric,unique,priority:5" json:"breakdown_value"`
	Impressions          int64           `gorm:"not null" json:"impressions"`
	Clicks               int64           `gorm:"not null" json:"clicks"`
	Spend                decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"spend"`
	Conversions          int64           `gorm:"not null" json:"conversions"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CampaignFact) TableName() string {
	return "campaign_data"
}

// FactDate truncates t to midnight UTC, the only form dates are stored in.
func FactDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

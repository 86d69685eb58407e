package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	UpdateLastLogin(id uint, at time.Time) error
	SetStripeCustomerID(id uint, customerID string) error
	Count() (int64, error)
	GetByProviderAccount(provider, providerUserID string) (*models.User, error)
	LinkProviderAccount(account *models.ProviderAccount) error
}

// IntegrationRepository defines the persistence operations for ad platform connections
type IntegrationRepository interface {
	GetByID(id uint) (*models.Integration, error)
	GetForUser(userID, id uint) (*models.Integration, error)
	GetByUserAndPlatform(userID uint, platform models.Platform) (*models.Integration, error)
	ListByUser(userID uint) ([]models.Integration, error)
	Create(integration *models.Integration) error
	Update(integration *models.Integration) error
	MarkFetched(id uint, at time.Time) error
	UpdateStatus(id uint, status string) error
	CountByStatus(status string) (int64, error)
}

// CampaignFactRepository covers fact writes (upsert, rollup) and the read
// models used by dashboards and insights. All reads are scoped to the active
// integrations of one user.
type CampaignFactRepository interface {
	WithTx(tx *gorm.DB) CampaignFactRepository
	Transaction(fn func(repo CampaignFactRepository) error) error

	Upsert(fact *models.CampaignFact) error
	UpsertBatch(facts []models.CampaignFact) error
	RecomputeOverall(integrationID uint, platform models.Platform, key CampaignDay) (bool, error)
	RecomputeOverallBatch(integrationID uint, platform models.Platform, keys []CampaignDay) (int, error)
	ListByCampaignDay(integrationID uint, campaignID string, date time.Time) ([]models.CampaignFact, error)
	Count() (int64, error)

	DailyCampaignSpend(userID uint, start, end time.Time) ([]CampaignDailyValue, error)
	CampaignMetricTotals(userID uint, metric string, start, end time.Time) ([]CampaignMetricTotal, error)
	CampaignTotals(userID uint, platform models.Platform, campaignID string, start, end time.Time) (*MetricTotals, error)
	LatestCampaignName(userID uint, platform models.Platform, campaignID string) (string, error)
	DailyTotals(userID uint, filter FactFilter, start, end time.Time) ([]DailyTotals, error)
	PeriodTotals(userID uint, filter FactFilter, start, end time.Time) (*MetricTotals, error)
	DailyPlatformMetric(userID uint, metric string, start, end time.Time) ([]PlatformDailyValue, error)
	BreakdownTotals(userID uint, breakdownType, metric string, filter FactFilter, start, end time.Time) ([]BreakdownTotal, error)
	ListCampaigns(userID uint) ([]CampaignRef, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User        UserRepository
	Integration IntegrationRepository
	Fact        CampaignFactRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Integration: NewIntegrationRepository(db),
		Fact:        NewCampaignFactRepository(db),
	}
}

package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/AdInsights/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	Transaction(fn func(repo Repository) error) error

	ListActivePlans() ([]models.SubscriptionPlan, error)
	GetPlan(id uint) (*models.SubscriptionPlan, error)
	GetPlanByStripePriceID(priceID string) (*models.SubscriptionPlan, error)

	GetUser(id uint) (*models.User, error)
	SetStripeCustomerID(userID uint, customerID string) error

	GetSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	CancelOtherSubscriptions(userID uint, keepStripeID string) (int64, error)
	LatestEntitlingSubscription(userID uint) (*models.Subscription, error)
	LatestTrialSubscription(userID uint) (*models.Subscription, error)

	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string, at time.Time) error
}

var entitlingStatuses = []string{
	models.SubscriptionStatusActive,
	models.SubscriptionStatusTrialing,
	models.SubscriptionStatusPastDue,
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(repo Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// first maps gorm.ErrRecordNotFound to the given sentinel.
func first(q *gorm.DB, dest any, notFound error) error {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

func (r *gormRepository) ListActivePlans() ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	err := r.db.Where("is_active = ?", true).Order("price ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *gormRepository) GetPlan(id uint) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	if err := first(r.db.Where("id = ?", id), &p, ErrPlanNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPlanByStripePriceID(priceID string) (*models.SubscriptionPlan, error) {
	var p models.SubscriptionPlan
	if err := first(r.db.Where("stripe_price_id = ?", priceID), &p, ErrPlanNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetUser(id uint) (*models.User, error) {
	var u models.User
	if err := first(r.db.Where("id = ?", id), &u, gorm.ErrRecordNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) SetStripeCustomerID(userID uint, customerID string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("stripe_customer_id", customerID).Error
}

func (r *gormRepository) GetSubscriptionByStripeID(stripeSubscriptionID string) (*models.Subscription, error) {
	var s models.Subscription
	q := r.db.Preload("Plan").Where("stripe_subscription_id = ?", stripeSubscriptionID)
	if err := first(q, &s, ErrSubscriptionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Omit(clause.Associations).Save(sub).Error
}

// CancelOtherSubscriptions moves every other entitling subscription of the user to cancelled.
func (r *gormRepository) CancelOtherSubscriptions(userID uint, keepStripeID string) (int64, error) {
	tx := r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND stripe_subscription_id <> ? AND status IN ?", userID, keepStripeID, entitlingStatuses).
		Update("status", models.SubscriptionStatusCancelled)
	return tx.RowsAffected, tx.Error
}

func (r *gormRepository) LatestEntitlingSubscription(userID uint) (*models.Subscription, error) {
	var s models.Subscription
	q := r.db.Preload("Plan").Where("user_id = ? AND status IN ?", userID, entitlingStatuses).Order("created_at DESC, id DESC")
	if err := first(q, &s, ErrSubscriptionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) LatestTrialSubscription(userID uint) (*models.Subscription, error) {
	var s models.Subscription
	q := r.db.Preload("Plan").Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusTrialing).Order("end_date DESC, id DESC")
	if err := first(q, &s, ErrSubscriptionNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string, at time.Time) error {
	updates := map[string]interface{}{
		"processed_at":     at,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

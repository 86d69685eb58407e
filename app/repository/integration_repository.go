package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
)

type integrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new integration repository instance
func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) GetByID(id uint) (*models.Integration, error) {
	var i models.Integration
	if err := r.db.First(&i, id).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

// GetForUser only returns the integration when it belongs to userID.
func (r *integrationRepository) GetForUser(userID, id uint) (*models.Integration, error) {
	var i models.Integration
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&i).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *integrationRepository) GetByUserAndPlatform(userID uint, platform models.Platform) (*models.Integration, error) {
	var i models.Integration
	if err := r.db.Where("user_id = ? AND platform_name = ?", userID, platform).First(&i).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *integrationRepository) ListByUser(userID uint) ([]models.Integration, error) {
	var list []models.Integration
	err := r.db.Where("user_id = ?", userID).Order("platform_name ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *integrationRepository) Create(integration *models.Integration) error {
	return r.db.Create(integration).Error
}

func (r *integrationRepository) Update(integration *models.Integration) error {
	return r.db.Save(integration).Error
}

func (r *integrationRepository) MarkFetched(id uint, at time.Time) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Update("last_fetched_at", at).Error
}

func (r *integrationRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Update("status", status).Error
}

func (r *integrationRepository) CountByStatus(status string) (int64, error) {
	var n int64
	err := r.db.Model(&models.Integration{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

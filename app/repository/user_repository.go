package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// firstUser runs q and returns gorm.ErrRecordNotFound when nothing matches.
func firstUser(q *gorm.DB) (*models.User, error) {
	var user models.User
	if err := q.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	return firstUser(r.db.Where("id = ?", id))
}

// GetByEmail matches the normalized (trimmed, lower case) address.
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	return firstUser(r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepository) GetByStripeCustomerID(customerID string) (*models.User, error) {
	return firstUser(r.db.Where("stripe_customer_id = ?", customerID))
}

// GetByProviderAccount resolves a linked Google or Facebook login identity to its user.
func (r *userRepository) GetByProviderAccount(provider, providerUserID string) (*models.User, error) {
	return firstUser(r.db.
		Joins("JOIN provider_accounts ON provider_accounts.user_id = users.id").
		Where("provider_accounts.provider = ? AND provider_accounts.provider_user_id = ?", provider, providerUserID))
}

// LinkProviderAccount fails with gorm.ErrDuplicatedKey when the identity already belongs to a user.
func (r *userRepository) LinkProviderAccount(account *models.ProviderAccount) error {
	return r.db.Create(account).Error
}

func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at.UTC()).Error
}

func (r *userRepository) SetStripeCustomerID(id uint, customerID string) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).Update("stripe_customer_id", customerID).Error
}

func (r *userRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.User{}).Count(&n).Error
	return n, err
}

package repository

import (
	"strings"

	"github.com/launchdeck/launchdeck/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a new payment row
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByTransactionID resolves an external transaction id to its local payment
func (r *paymentRepository) GetByTransactionID(transactionID string) (*models.Payment, error) {
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	err := r.db.Where("transaction_id = ?", trimmed).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetMostRecentByUserID returns the user's latest payment by creation time.
func (r *paymentRepository) GetMostRecentByUserID(userID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByUserID returns a page of the user's payments, newest first
func (r *paymentRepository) ListByUserID(userID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

// Update saves changes to an existing payment
func (r *paymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

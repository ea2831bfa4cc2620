package billing

import (
	"github.com/launchdeck/launchdeck/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciliation service.
type Repository interface {
	UserByEmail(email string) (*models.User, error)
	CreateUser(user *models.User) error
	EnsureUserSettings(userID uint) (*models.UserSettings, error)
	SaveUserSettings(us *models.UserSettings) error

	CreateSubscription(sub *models.Subscription) error
	SaveSubscription(sub *models.Subscription) error
	SubscriptionByProviderID(providerID string) (*models.Subscription, error)
	MostRecentSubscriptionByUser(userID uint) (*models.Subscription, error)

	UpsertPaymentByTransactionID(payment *models.Payment) (bool, error)
	PaymentByTransactionID(transactionID string) (*models.Payment, error)
	MostRecentPaymentByUser(userID uint) (*models.Payment, error)
	SavePayment(payment *models.Payment) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *gormRepository) EnsureUserSettings(userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(r.db, userID)
}

func (r *gormRepository) SaveUserSettings(us *models.UserSettings) error {
	return r.db.Save(us).Error
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) SubscriptionByProviderID(providerID string) (*models.Subscription, error) {
	if providerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	err := r.db.Where("provider_subscription_id = ?", providerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) MostRecentSubscriptionByUser(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertPaymentByTransactionID inserts the payment or, on webhook redelivery,
// updates the existing row carrying the same external transaction id.
// Returns whether a new row was created.
func (r *gormRepository) UpsertPaymentByTransactionID(payment *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "transaction_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"subscription_id",
			"amount",
			"currency",
			"status",
			"payment_method",
			"updated_at",
		}),
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}

	// MySQL reports 1 affected row for an insert, 2 for an update.
	created := tx.RowsAffected == 1

	// Ensure ID and UUID reflect the stored row after upsert.
	if err := r.db.Where("transaction_id = ?", payment.TransactionID).First(payment).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *gormRepository) PaymentByTransactionID(transactionID string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	err := r.db.Where("transaction_id = ?", transactionID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) MostRecentPaymentByUser(userID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormRepository) SavePayment(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

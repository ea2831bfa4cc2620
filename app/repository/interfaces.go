package repository

import (
	"github.com/launchdeck/launchdeck/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUUID(uuid string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// SubscriptionRepository defines the interface for subscription operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByProviderSubscriptionID(providerID string) (*models.Subscription, error)
	GetMostRecentByUserID(userID uint) (*models.Subscription, error)
	ListByUserID(userID uint) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
}

// PaymentRepository defines the interface for payment operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByTransactionID(transactionID string) (*models.Payment, error)
	GetMostRecentByUserID(userID uint) (*models.Payment, error)
	ListByUserID(userID uint, offset, limit int) ([]models.Payment, error)
	Update(payment *models.Payment) error
}

// ActivityLogRepository defines the interface for audit trail operations
type ActivityLogRepository interface {
	Create(entry *models.ActivityLog) error
	List(offset, limit int) ([]models.ActivityLog, error)
	ListByUserID(userID uint, offset, limit int) ([]models.ActivityLog, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
	ActivityLog  ActivityLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
		ActivityLog:  NewActivityLogRepository(db),
	}
}

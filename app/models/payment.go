package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment records a single provider transaction. TransactionID is the external
// id and the natural dedup key: webhook redelivery updates the existing row
// instead of inserting a duplicate.
type Payment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           string    `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	SubscriptionID *uint     `gorm:"index;default:null" json:"subscription_id,omitempty"`
	Amount         string    `gorm:"type:varchar(20);not null;default:'0.00'" json:"amount"`
	Currency       string    `gorm:"type:varchar(8);not null;default:'usd'" json:"currency"`
	Status         string    `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	TransactionID  string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"transaction_id"`
	PaymentMethod  string    `gorm:"type:varchar(50)" json:"payment_method"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return nil
}

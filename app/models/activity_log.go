package models

import "time"

// ActivityLog is a best-effort audit trail row. Writers must never let a
// failed insert propagate into the request that triggered it.
type ActivityLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       *uint     `gorm:"index;default:null" json:"user_id,omitempty"`
	Action       string    `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType string    `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   string    `gorm:"type:varchar(191)" json:"resource_id"`
	IPAddress    string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent    string    `gorm:"type:varchar(255)" json:"user_agent"`
	Metadata     string    `gorm:"type:longtext" json:"metadata"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

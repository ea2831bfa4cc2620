package repository

import (
	"github.com/launchdeck/launchdeck/app/models"
	"gorm.io/gorm"
)

// activityLogRepository implements the ActivityLogRepository interface
type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new activity log repository instance
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// Create inserts a new audit trail entry
func (r *activityLogRepository) Create(entry *models.ActivityLog) error {
	return r.db.Create(entry).Error
}

// List returns a page of entries, newest first
func (r *activityLogRepository) List(offset, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}

// ListByUserID returns a page of entries for a single user, newest first
func (r *activityLogRepository) ListByUserID(userID uint, offset, limit int) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}

// Count returns the total number of entries
func (r *activityLogRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ActivityLog{}).Count(&count).Error
	return count, err
}

// Package activitylog writes best-effort audit trail entries. Every mutating
// endpoint and the webhook dispatcher record through it; a failed write must
// never fail the request that triggered it, so all errors end up on the
// diagnostic log only.
package activitylog

import (
	"encoding/json"
	"log"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
)

// Entry describes a single audit trail record.
type Entry struct {
	UserID       *uint
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Metadata     map[string]any
}

// Record persists the entry, swallowing every failure.
func Record(entry Entry) {
	db := database.GetDB()
	if db == nil {
		log.Printf("activity log dropped (database not configured): %s %s/%s", entry.Action, entry.ResourceType, entry.ResourceID)
		return
	}

	metadata := ""
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			log.Printf("activity log metadata marshal failed for %s: %v", entry.Action, err)
		} else {
			metadata = string(raw)
		}
	}

	row := models.ActivityLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Metadata:     metadata,
	}
	if err := db.Create(&row).Error; err != nil {
		log.Printf("activity log write failed for %s: %v", entry.Action, err)
	}
}

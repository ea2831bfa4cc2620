package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/app/repository"
	"github.com/launchdeck/launchdeck/internal/pkg/activitylog"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
	"github.com/launchdeck/launchdeck/internal/pkg/env"
	"github.com/launchdeck/launchdeck/internal/pkg/usercontext"
)

// HandleListActivity returns the global audit trail, newest first.
func HandleListActivity(c *fiber.Ctx) error {
	offset, limit := pagination(c, 50, 200)

	repo := repository.GetGlobalFactory().GetActivityLogRepository()
	entries, err := repo.List(offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load activity log"})
	}
	total, err := repo.Count()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count activity log"})
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		var metadata map[string]any
		if e.Metadata != "" {
			_ = json.Unmarshal([]byte(e.Metadata), &metadata)
		}
		items = append(items, fiber.Map{
			"id":            e.ID,
			"user_id":       e.UserID,
			"action":        e.Action,
			"resource_type": e.ResourceType,
			"resource_id":   e.ResourceID,
			"ip_address":    e.IPAddress,
			"metadata":      metadata,
			"created_at":    e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"activity": items,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}

// HandleAdminSetup migrates the schema and bootstraps the admin account from
// ADMIN_EMAIL / ADMIN_PASSWORD. Re-running it is harmless: migration is
// additive and an existing admin user is left untouched.
func HandleAdminSetup(c *fiber.Ctx) error {
	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Database not configured"})
	}

	database.Migrate(db)

	adminEmail := models.NormalizeEmail(env.GetEnv("ADMIN_EMAIL", ""))
	adminPassword := env.GetEnv("ADMIN_PASSWORD", "")
	if adminEmail == "" || adminPassword == "" {
		return c.JSON(fiber.Map{"success": true, "admin_created": false, "message": "Schema migrated; ADMIN_EMAIL/ADMIN_PASSWORD not set"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(adminEmail); err == nil {
		return c.JSON(fiber.Map{"success": true, "admin_created": false, "message": "Admin account already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check admin account"})
	}

	admin, err := models.CreateUser(models.EmailLocalPart(adminEmail), adminEmail, adminPassword)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}
	admin.Role = models.ROLE_ADMIN
	admin.EmailVerified = true
	if err := repo.Create(admin); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create admin account"})
	}
	if _, err := models.GetOrCreateUserSettings(db, admin.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create admin settings"})
	}

	userCtx := usercontext.GetUserContext(c)
	var actorID *uint
	if userCtx.IsLoggedIn {
		actorID = &userCtx.UserID
	}
	activitylog.Record(activitylog.Entry{
		UserID:       actorID,
		Action:       "admin.setup",
		ResourceType: "user",
		ResourceID:   admin.UUID,
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})

	return c.JSON(fiber.Map{"success": true, "admin_created": true})
}

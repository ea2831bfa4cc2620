package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/app/repository"
	"github.com/launchdeck/launchdeck/internal/pkg/activitylog"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
	"github.com/launchdeck/launchdeck/internal/pkg/entitlements"
	"github.com/launchdeck/launchdeck/internal/pkg/usercontext"
)

// HandleGetUserAccount returns account information for the authenticated user (API key or session).
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	plan := entitlements.Normalize(settings.Plan)

	response := fiber.Map{
		"id":                   account.UUID,
		"name":                 account.Name,
		"email":                account.Email,
		"role":                 account.Role,
		"status":               account.Status,
		"email_verified":       account.EmailVerified,
		"plan":                 string(plan),
		"is_admin":             account.IsAdmin(),
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(account.LastLoginAt),
		"api_key_prefix":       settings.APIKeyPrefix,
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		"license": fiber.Map{
			"activated":      settings.LicenseActivated,
			"key_prefix":     settings.LicenseKeyPrefix,
			"activated_at":   formatTimePtr(settings.LicenseActivatedAt),
			"deactivated_at": formatTimePtr(settings.LicenseDeactivatedAt),
		},
		"limits": fiber.Map{
			"max_seats":               entitlements.MaxSeats(plan),
			"api_requests_per_minute": entitlements.APIRequestsPerMinute(plan),
			"can_use_webhooks":        entitlements.CanUseWebhooks(plan),
			"priority_support":        entitlements.HasPrioritySupport(plan),
		},
	}

	return c.JSON(response)
}

type updateAccountRequest struct {
	Name *string `json:"name"`
}

// HandleUpdateUserAccount patches mutable profile fields.
func HandleUpdateUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req updateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON payload"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	changed := false
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		account.Name = strings.TrimSpace(*req.Name)
		changed = true
	}
	if changed {
		if err := account.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		}
		if err := repo.Update(account); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update user"})
		}
		activitylog.Record(activitylog.Entry{
			UserID:       &account.ID,
			Action:       "user.update",
			ResourceType: "user",
			ResourceID:   account.UUID,
			IPAddress:    c.IP(),
			UserAgent:    c.Get("User-Agent"),
		})
	}

	return c.JSON(fiber.Map{
		"id":    account.UUID,
		"name":  account.Name,
		"email": account.Email,
	})
}

// HandleGetUserSettings returns the settings blob for the authenticated user.
func HandleGetUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	return c.JSON(fiber.Map{
		"plan":                 settings.Plan,
		"notify_billing_email": settings.NotifyBillingEmail,
		"license_activated":    settings.LicenseActivated,
	})
}

type updateSettingsRequest struct {
	NotifyBillingEmail *bool `json:"notify_billing_email"`
}

// HandleUpdateUserSettings patches user preferences.
func HandleUpdateUserSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON payload"})
	}

	db := database.GetDB()
	if db == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
	}
	settings, err := models.GetOrCreateUserSettings(db, userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	if req.NotifyBillingEmail != nil {
		settings.NotifyBillingEmail = *req.NotifyBillingEmail
	}
	if err := db.Save(settings).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save user settings"})
	}

	activitylog.Record(activitylog.Entry{
		UserID:       &userCtx.UserID,
		Action:       "settings.update",
		ResourceType: "user_settings",
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})

	return c.JSON(fiber.Map{
		"notify_billing_email": settings.NotifyBillingEmail,
	})
}

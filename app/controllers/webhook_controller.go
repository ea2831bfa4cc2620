package controllers

import (
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchdeck/launchdeck/internal/pkg/activitylog"
	"github.com/launchdeck/launchdeck/internal/pkg/billing"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
	"github.com/launchdeck/launchdeck/internal/pkg/env"
)

// signatureHeaders in precedence order; the first non-empty one wins.
var signatureHeaders = []string{"x-creem-signature", "x-signature", "x-webhook-signature"}

// HandleCreemWebhookCheck answers provider liveness probes on the webhook URL.
func HandleCreemWebhookCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":   "Creem webhook endpoint is reachable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleCreemWebhook ingests a Creem webhook delivery. After the body passes
// signature and structural checks the endpoint always acknowledges with 200,
// including for unknown event types and failed reconciliations; redeliveries
// are absorbed by the idempotent handlers, and reconciliation errors surface
// through the activity log instead of the HTTP status.
func HandleCreemWebhook(c *fiber.Ctx) error {
	body := c.Body()

	signature := firstHeaderValue(c, signatureHeaders...)
	if signature == "" {
		if auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); auth != "" {
			signature = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}

	secret := strings.TrimSpace(env.GetEnv("CREEM_WEBHOOK_SECRET", ""))
	if secret == "" {
		log.Printf("[Webhook] CREEM_WEBHOOK_SECRET not set - accepting unverified delivery")
	} else {
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing webhook signature"})
		}
		if !billing.VerifyWebhookSignature(body, signature, secret) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid webhook signature"})
		}
	}

	event, err := billing.ParseEvent(body)
	if err != nil {
		msg := "Invalid JSON payload"
		if err == billing.ErrInvalidEvent {
			msg = "Invalid event structure"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": msg})
	}

	db := database.GetDB()
	if db == nil {
		log.Printf("[Webhook] database not configured - acknowledged %s without processing", event.Type)
		return c.JSON(fiber.Map{"success": true})
	}

	outcome := billing.NewServiceFromDB(db).ProcessEvent(c.Context(), event)

	metadata := map[string]any{
		"event_id": event.ID,
		"handled":  outcome.Handled,
	}
	if outcome.Err != nil {
		metadata["error"] = outcome.Err.Error()
		log.Printf("[Webhook] reconciliation error for %s (%s): %v", event.Type, event.ID, outcome.Err)
	}
	if !outcome.Handled {
		log.Printf("[Webhook] unhandled event type: %s", event.Type)
	}

	activitylog.Record(activitylog.Entry{
		Action:       "webhook.creem." + event.Type,
		ResourceType: "webhook_event",
		ResourceID:   event.ID,
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
		Metadata:     metadata,
	})

	return c.JSON(fiber.Map{"success": true})
}

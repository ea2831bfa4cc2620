package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/app/repository"
	"github.com/launchdeck/launchdeck/internal/pkg/activitylog"
	"github.com/launchdeck/launchdeck/internal/pkg/billing"
	"github.com/launchdeck/launchdeck/internal/pkg/cache"
	"github.com/launchdeck/launchdeck/internal/pkg/entitlements"
	"github.com/launchdeck/launchdeck/internal/pkg/usercontext"
)

const planCatalogCacheKey = "billing:plan_catalog"
const planCatalogCacheTTL = 10 * time.Minute

type planCatalogEntry struct {
	Plan         string `json:"plan"`
	MonthlyCents int64  `json:"monthly_cents"`
	YearlyCents  int64  `json:"yearly_cents"`
	MaxSeats     int    `json:"max_seats"`
	APIPerMinute int    `json:"api_requests_per_minute"`
	Webhooks     bool   `json:"can_use_webhooks"`
	PrioritySupp bool   `json:"priority_support"`
}

func planCatalog() []planCatalogEntry {
	plans := []struct {
		plan    entitlements.Plan
		monthly int64
		yearly  int64
	}{
		{entitlements.PlanStarter, 0, 0},
		{entitlements.PlanPro, 2999, 29990},
		{entitlements.PlanBusiness, 9999, 99990},
		{entitlements.PlanEnterprise, 29999, 299990},
	}

	entries := make([]planCatalogEntry, 0, len(plans))
	for _, p := range plans {
		entries = append(entries, planCatalogEntry{
			Plan:         string(p.plan),
			MonthlyCents: p.monthly,
			YearlyCents:  p.yearly,
			MaxSeats:     entitlements.MaxSeats(p.plan),
			APIPerMinute: entitlements.APIRequestsPerMinute(p.plan),
			Webhooks:     entitlements.CanUseWebhooks(p.plan),
			PrioritySupp: entitlements.HasPrioritySupport(p.plan),
		})
	}
	return entries
}

// HandleGetPlans returns the public plan/pricing catalog, cached in redis.
func HandleGetPlans(c *fiber.Ctx) error {
	if cached, err := cache.Get(planCatalogCacheKey); err == nil && cached != "" {
		c.Set("Content-Type", "application/json")
		return c.SendString(cached)
	}

	payload, err := json.Marshal(fiber.Map{"plans": planCatalog()})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to build plan catalog"})
	}
	_ = cache.Set(planCatalogCacheKey, string(payload), planCatalogCacheTTL)

	c.Set("Content-Type", "application/json")
	return c.Send(payload)
}

type checkoutRequest struct {
	ProductID  string `json:"product_id"`
	SuccessURL string `json:"success_url"`
}

// HandleCreateCheckout creates a hosted checkout session at the provider.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON payload"})
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "product_id is required"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	client := billing.NewCreemClientFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := client.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		ProductID:     req.ProductID,
		CustomerEmail: account.Email,
		SuccessURL:    strings.TrimSpace(req.SuccessURL),
		RequestID:     account.UUID,
	})
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Checkout creation failed"})
	}

	activitylog.Record(activitylog.Entry{
		UserID:       &userCtx.UserID,
		Action:       "billing.checkout_created",
		ResourceType: "checkout",
		ResourceID:   session.ID,
		IPAddress:    c.IP(),
		UserAgent:    c.Get("User-Agent"),
		Metadata:     map[string]any{"product_id": req.ProductID},
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"checkout_id":  session.ID,
		"checkout_url": session.CheckoutURL,
	})
}

// HandleGetSubscription returns the user's most recent subscription.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	sub, err := repo.GetMostRecentByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"subscription": nil, "plan": models.SubscriptionPlanStarter})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(fiber.Map{
		"subscription": fiber.Map{
			"id":                   sub.UUID,
			"plan":                 sub.Plan,
			"status":               sub.Status,
			"billing_cycle":        sub.BillingCycle,
			"current_period_start": formatTimePtr(sub.CurrentPeriodStart),
			"current_period_end":   formatTimePtr(sub.CurrentPeriodEnd),
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"entitling":            sub.IsEntitling(),
		},
		"plan": sub.Plan,
	})
}

// HandleListPayments returns the user's payment history.
func HandleListPayments(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	offset, limit := pagination(c, 20, 100)
	repo := repository.GetGlobalFactory().GetPaymentRepository()
	payments, err := repo.ListByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}

	items := make([]fiber.Map, 0, len(payments))
	for _, p := range payments {
		items = append(items, fiber.Map{
			"id":             p.UUID,
			"amount":         p.Amount,
			"currency":       p.Currency,
			"status":         p.Status,
			"transaction_id": p.TransactionID,
			"payment_method": p.PaymentMethod,
			"created_at":     p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"payments": items,
		"offset":   offset,
		"limit":    limit,
	})
}

package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchdeck/launchdeck/app/controllers"
	"github.com/launchdeck/launchdeck/app/repository"
	"github.com/launchdeck/launchdeck/internal/pkg/constants"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
	"github.com/launchdeck/launchdeck/internal/pkg/middleware"
	"github.com/launchdeck/launchdeck/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// Wire repositories against the shared DB handle. In degraded mode (nil DB)
	// the factory stays uninitialized and handlers answer without persistence.
	if db := database.GetDB(); db != nil {
		repository.InitializeFactory(db)
	}

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Webhook ingestion lives outside the rate-limited /api group; the provider
	// retries aggressively and must never be throttled.
	app.Post(constants.WebhookCreemRoute, controllers.HandleCreemWebhook)
	app.Get(constants.WebhookCreemRoute, controllers.HandleCreemWebhookCheck)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

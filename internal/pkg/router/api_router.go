package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/launchdeck/launchdeck/app/controllers"
	"github.com/launchdeck/launchdeck/internal/pkg/constants"
	"github.com/launchdeck/launchdeck/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max: 120,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "launchdeck api",
		})
	})

	v1 := api.Group(constants.APIV1Route)

	// Auth
	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/logout", controllers.HandleLogout)

	// Account and settings; API keys double as credentials for these routes.
	user := v1.Group("/user", middleware.APIKeyAuthMiddleware(), middleware.RequireSessionAuth)
	user.Get("/account", controllers.HandleGetUserAccount)
	user.Patch("/account", controllers.HandleUpdateUserAccount)
	user.Get("/settings", controllers.HandleGetUserSettings)
	user.Patch("/settings", controllers.HandleUpdateUserSettings)
	user.Post("/api-key", controllers.HandleIssueAPIKey)
	user.Delete("/api-key", controllers.HandleRevokeAPIKey)

	// Billing
	billing := v1.Group("/billing")
	billing.Get("/plans", controllers.HandleGetPlans)
	billing.Post("/checkout", middleware.APIKeyAuthMiddleware(), middleware.RequireSessionAuth, controllers.HandleCreateCheckout)
	billing.Get("/subscription", middleware.APIKeyAuthMiddleware(), middleware.RequireSessionAuth, controllers.HandleGetSubscription)
	billing.Get("/payments", middleware.APIKeyAuthMiddleware(), middleware.RequireSessionAuth, controllers.HandleListPayments)

	// Admin
	admin := v1.Group("/admin", middleware.RequireSessionAuth, middleware.RequireAdmin)
	admin.Get("/activity", controllers.HandleListActivity)
	admin.Post("/setup", controllers.HandleAdminSetup)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

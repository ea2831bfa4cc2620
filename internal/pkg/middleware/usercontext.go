package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/internal/pkg/database"
	"github.com/launchdeck/launchdeck/internal/pkg/session"
	"github.com/launchdeck/launchdeck/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the session into a request-scoped user
// context for every request. Anonymous requests pass through with an empty
// context; downstream auth middlewares decide whether that is acceptable.
func UserContextMiddleware(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous(c)
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymous(c)
	}

	uid, ok := userID.(uint)
	if !ok {
		return anonymous(c)
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	// Plan with session-first strategy; fall back to settings when the DB is up.
	plan := session.GetSessionValue(c, "user_plan")
	if plan == "" {
		plan = models.SubscriptionPlanStarter
		if db := database.GetDB(); db != nil {
			if us, err := models.GetOrCreateUserSettings(db, uid); err == nil && us != nil && us.Plan != "" {
				plan = us.Plan
			}
		}
		_ = session.SetSessionValue(c, "user_plan", plan)
	}

	c.Locals("USER_CONTEXT", usercontext.UserContext{
		UserID:     uid,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		Plan:       plan,
	})
	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUserID, uid)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyIsAdmin, isAdmin)

	return c.Next()
}

func anonymous(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsAdmin, false)
	return c.Next()
}

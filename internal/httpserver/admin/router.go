package admin

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/storyreel/backend/internal/app"
	"github.com/storyreel/backend/internal/httpserver/httputil"
)

const adminTokenHeader = "X-Admin-Token"

// Register mounts the platform-operator endpoints. The group stays unmounted
// when no admin token is configured.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}
	token := strings.TrimSpace(container.Config.Admin.APIToken)
	if token == "" {
		return
	}

	handler := &adminHandler{container: container}

	group := fiberApp.Group("/admin", adminAuthMiddleware(token))
	group.Get("/pricing", handler.listPricing)
	group.Post("/pricing", handler.upsertPricing)
	group.Get("/settings/starting-credits", handler.startingCredits)
	group.Put("/settings/starting-credits", handler.updateStartingCredits)
	group.Post("/credits/grant", handler.grantCredits)
	group.Post("/credits/prepay", handler.prepayRegeneration)
}

type adminHandler struct {
	container *app.Container
}

func adminAuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := strings.TrimSpace(c.Get(adminTokenHeader))
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}

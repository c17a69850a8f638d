package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/storyreel/backend/internal/app"
)

// Register wires up the user-facing generation and credit endpoints.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}

	handler := &apiHandler{container: container}

	// Estimation is anonymous; everything else needs the proxy identity.
	fiberApp.Post("/api/v1/generate/:operation/estimate", handler.estimate)

	v1 := fiberApp.Group("/api/v1", requireUser())
	v1.Post("/generate/:operation", handler.generate)

	v1.Get("/credits", handler.balance)
	v1.Get("/credits/transactions", handler.transactions)
	v1.Get("/credits/statistics", handler.statistics)
	v1.Get("/projects/:projectID/statistics", handler.projectStatistics)

	v1.Get("/assets/*", handler.downloadAsset)
	v1.Delete("/assets/*", handler.deleteAsset)

	v1.Get("/providers", handler.listProviders)
	v1.Get("/providers/preferences", handler.listPreferences)
	v1.Put("/providers/preferences/:operation", handler.savePreference)
	v1.Put("/providers/credentials/:provider", handler.saveCredential)
	v1.Delete("/providers/credentials/:provider", handler.deleteCredential)
}

type apiHandler struct {
	container *app.Container
}

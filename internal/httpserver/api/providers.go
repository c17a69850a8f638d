package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/httpserver/httputil"
	"github.com/storyreel/backend/internal/services/providerconfig"
)

// listProviders reports every supported provider, the operations it can
// serve, and whether the caller has stored their own credential for it.
func (h *apiHandler) listProviders(c *fiber.Ctx) error {
	userID := currentUserID(c)

	providers := catalog.KnownProviders()
	out := make([]fiber.Map, 0, len(providers))
	for _, provider := range providers {
		cred, err := h.container.ProviderStore.Credential(c.UserContext(), userID, provider)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load credentials")
		}
		ops := make([]catalog.Operation, 0, len(listedOperations))
		for _, op := range listedOperations {
			if catalog.SupportsOperation(provider, op) {
				ops = append(ops, op)
			}
		}
		out = append(out, fiber.Map{
			"provider":    provider,
			"operations":  ops,
			"has_own_key": cred != nil,
		})
	}
	return c.JSON(fiber.Map{"providers": out})
}

var listedOperations = []catalog.Operation{
	catalog.OperationImage, catalog.OperationImageEdit,
	catalog.OperationVideo, catalog.OperationVoiceover,
	catalog.OperationMusic, catalog.OperationScene,
	catalog.OperationCharacter, catalog.OperationPrompt,
}

// listPreferences reports the effective provider/model per operation: the
// saved preference where one exists, the platform default otherwise.
func (h *apiHandler) listPreferences(c *fiber.Ctx) error {
	userID := currentUserID(c)

	out := make([]fiber.Map, 0, len(listedOperations))
	for _, op := range listedOperations {
		entry := fiber.Map{"operation": op}
		pref, err := h.container.ProviderStore.Preference(c.UserContext(), userID, op)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load preferences")
		}
		if pref != nil {
			entry["provider"] = pref.Provider
			entry["model"] = pref.Model
			entry["source"] = "preference"
		} else if sel, ok := catalog.DefaultSelection(op); ok {
			entry["provider"] = sel.Provider
			entry["model"] = sel.Model
			entry["source"] = "default"
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"preferences": out})
}

type preferenceRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (h *apiHandler) savePreference(c *fiber.Ctx) error {
	op, ok := catalog.ParseOperation(c.Params("operation"))
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "unknown operation")
	}

	var req preferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	provider := catalog.ParseProvider(req.Provider)
	if provider == catalog.ProviderUnknown {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown provider")
	}
	if !catalog.SupportsOperation(provider, op) {
		return httputil.WriteError(c, fiber.StatusBadRequest, provider.String()+" cannot serve "+op.String())
	}
	model := strings.TrimSpace(req.Model)
	if model != "" && !catalog.KnownModel(provider, op, model) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown model for provider")
	}

	err := h.container.ProviderStore.SavePreference(c.UserContext(), currentUserID(c), op, providerconfig.Preference{
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to save preference")
	}
	return c.JSON(fiber.Map{"success": true, "operation": op, "provider": provider, "model": model})
}

type credentialRequest struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`
}

func (h *apiHandler) saveCredential(c *fiber.Ctx) error {
	provider := catalog.ParseProvider(c.Params("provider"))
	if provider == catalog.ProviderUnknown {
		return httputil.WriteError(c, fiber.StatusNotFound, "unknown provider")
	}

	var req credentialRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "api_key is required")
	}

	err := h.container.ProviderStore.SaveCredential(c.UserContext(), currentUserID(c), providerconfig.Credential{
		Provider: provider,
		APIKey:   strings.TrimSpace(req.APIKey),
		Endpoint: strings.TrimSpace(req.Endpoint),
	})
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to save credential")
	}
	return c.JSON(fiber.Map{"success": true, "provider": provider})
}

func (h *apiHandler) deleteCredential(c *fiber.Ctx) error {
	provider := catalog.ParseProvider(c.Params("provider"))
	if provider == catalog.ProviderUnknown {
		return httputil.WriteError(c, fiber.StatusNotFound, "unknown provider")
	}

	if err := h.container.ProviderStore.DeleteCredential(c.UserContext(), currentUserID(c), provider); err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to delete credential")
	}
	return c.JSON(fiber.Map{"success": true, "provider": provider})
}

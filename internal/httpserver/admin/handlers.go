package admin

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/httpserver/httputil"
	"github.com/storyreel/backend/internal/services/adminsettings"
	"github.com/storyreel/backend/internal/services/prepaid"
	"github.com/storyreel/backend/internal/services/pricing"
)

func (h *adminHandler) listPricing(c *fiber.Ctx) error {
	entries, err := h.container.Pricing.All(c.UserContext())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load pricing entries")
	}
	return c.JSON(fiber.Map{"entries": entries})
}

type upsertPricingRequest struct {
	ActionType string     `json:"action_type"`
	Provider   string     `json:"provider"`
	Cost       string     `json:"cost"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidTo    *time.Time `json:"valid_to"`
}

func (h *adminHandler) upsertPricing(c *fiber.Ctx) error {
	var req upsertPricingRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actionType, ok := catalog.ParseActionType(req.ActionType)
	if !ok {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown action_type")
	}
	provider := catalog.ParseProvider(req.Provider)
	if provider == catalog.ProviderUnknown {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown provider")
	}
	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "cost must be a decimal string")
	}

	validFrom := time.Time{}
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}
	err = h.container.Pricing.Upsert(c.UserContext(), actionType, provider, cost, validFrom, req.ValidTo)
	if errors.Is(err, pricing.ErrInvalidCost) {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to upsert pricing entry")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *adminHandler) startingCredits(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"starting_credits": h.container.Settings.StartingCredits(c.UserContext()),
	})
}

type startingCreditsRequest struct {
	Amount int64 `json:"amount"`
}

func (h *adminHandler) updateStartingCredits(c *fiber.Ctx) error {
	var req startingCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	err := h.container.Settings.UpdateStartingCredits(c.UserContext(), req.Amount, uuid.Nil)
	if errors.Is(err, adminsettings.ErrInvalidStartingCredits) {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to update starting credits")
	}
	return c.JSON(fiber.Map{"success": true, "starting_credits": req.Amount})
}

type grantCreditsRequest struct {
	UserID      string `json:"user_id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (h *adminHandler) grantCredits(c *fiber.Ctx) error {
	var req grantCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user_id")
	}
	actionType := catalog.ActionBonus
	if req.Type != "" {
		parsed, ok := catalog.ParseActionType(req.Type)
		if !ok {
			return httputil.WriteError(c, fiber.StatusBadRequest, "unknown type")
		}
		actionType = parsed
	}

	result := h.container.Credits.AddCredits(c.UserContext(), userID, req.Amount, actionType, req.Description)
	if !result.Success {
		return httputil.WriteError(c, fiber.StatusBadRequest, result.Error)
	}
	return c.JSON(result)
}

type prepayRequest struct {
	UserID    string `json:"user_id"`
	SceneID   string `json:"scene_id"`
	Operation string `json:"operation"`
	GrantedBy string `json:"granted_by"`
}

// prepayRegeneration funds one uncharged regeneration for a collaborator. The
// generation endpoint only honors a prepaid claim backed by such a grant.
func (h *adminHandler) prepayRegeneration(c *fiber.Ctx) error {
	var req prepayRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user_id")
	}
	op, ok := catalog.ParseOperation(req.Operation)
	if !ok {
		return httputil.WriteError(c, fiber.StatusBadRequest, "unknown operation")
	}
	grantedBy := uuid.Nil
	if req.GrantedBy != "" {
		grantedBy, err = uuid.Parse(req.GrantedBy)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid granted_by")
		}
	}

	grant, err := h.container.Prepaid.Grant(c.UserContext(), userID, req.SceneID, op, grantedBy)
	if errors.Is(err, prepaid.ErrSceneRequired) {
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to record prepaid regeneration")
	}
	return c.JSON(fiber.Map{"success": true, "grant": grant})
}

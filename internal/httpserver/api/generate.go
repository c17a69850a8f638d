package api

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/generation"
	"github.com/storyreel/backend/internal/httpserver/httputil"
	"github.com/storyreel/backend/internal/limits"
	"github.com/storyreel/backend/internal/services/assets"
	"github.com/storyreel/backend/internal/services/credits"
	"github.com/storyreel/backend/internal/services/providerconfig"
)

type generateRequest struct {
	Prompt              string   `json:"prompt"`
	ProjectID           *string  `json:"project_id"`
	SceneID             string   `json:"scene_id"`
	ReferenceImages     []string `json:"reference_images"`
	Provider            string   `json:"provider"`
	Model               string   `json:"model"`
	IsRegeneration      bool     `json:"is_regeneration"`
	PrepaidRegeneration bool     `json:"prepaid_regeneration"`
}

type generateResponse struct {
	Success        bool             `json:"success"`
	Asset          assets.Asset     `json:"asset"`
	Provider       catalog.Provider `json:"provider"`
	Model          string           `json:"model"`
	CreditsCharged int64            `json:"credits_charged"`
	Balance        *int64           `json:"balance,omitempty"`
	UserHasOwnKey  bool             `json:"user_has_own_key"`
}

func (h *apiHandler) generate(c *fiber.Ctx) error {
	op, ok := catalog.ParseOperation(c.Params("operation"))
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "unknown operation")
	}

	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	projectID, err := parseOptionalUUID(req.ProjectID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid project_id")
	}

	userID := currentUserID(c)
	selection, err := h.container.Resolver.Resolve(c.UserContext(), providerconfig.ResolveRequest{
		UserID:          userID,
		Operation:       op,
		Override:        overrideFrom(req),
		ReferenceImages: len(req.ReferenceImages),
	})
	switch {
	case errors.Is(err, providerconfig.ErrReferenceImageRequired):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, providerconfig.ErrProviderNotConfigured):
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to resolve provider")
	}

	// The body flag is only a claim. A regeneration runs uncharged solely when
	// an admin-funded grant for this user/scene/operation exists and is
	// consumed here; otherwise the request is billed like any other.
	prepaidConsumed := false
	if req.PrepaidRegeneration {
		consumed, err := h.container.Prepaid.Consume(c.UserContext(), userID, req.SceneID, op)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to check prepaid regeneration")
		}
		prepaidConsumed = consumed
	}

	creditCost := h.container.Config.Credits.CostFor(op)
	chargeable := !selection.UserHasOwnKey && !prepaidConsumed

	// Optimistic pre-flight; the deduction re-validates atomically after the
	// upstream call succeeds.
	if chargeable {
		check, err := h.container.Credits.CheckBalance(c.UserContext(), userID, creditCost)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to check balance")
		}
		if !check.HasEnough {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":         "insufficient credits",
				"required":      check.Required,
				"balance":       check.Balance,
				"needsPurchase": true,
			})
		}
	}

	limitCfg := limits.LimitConfig{
		GenerationsPerMinute: h.container.Config.Limits.GenerationsPerMinute,
		ParallelGenerations:  h.container.Config.Limits.ParallelGenerations,
	}
	if err := h.container.Limiter.Allow(c.UserContext(), userID.String(), limitCfg); err != nil {
		if errors.Is(err, limits.ErrLimitExceeded) {
			return httputil.WriteError(c, fiber.StatusTooManyRequests, "generation rate limit exceeded")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to check rate limit")
	}
	defer h.container.Limiter.Release(c.UserContext(), userID.String(), limitCfg)

	timeout := h.container.Config.Server.GenerationTimeout
	if timeout <= 0 {
		timeout = 280 * time.Second
	}
	dispatchCtx, cancel := context.WithTimeout(c.UserContext(), timeout)
	defer cancel()

	started := time.Now()
	result, err := h.container.Dispatchers.Dispatch(dispatchCtx, generation.Request{
		UserID:          userID,
		Operation:       op,
		Selection:       selection,
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		ProjectID:       projectID,
		SceneID:         req.SceneID,
	})
	if h.container.Observability != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		h.container.Observability.RecordGeneration(op, selection.Provider, status, time.Since(started))
	}
	if errors.Is(err, generation.ErrNoDispatcher) {
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "generation failed: "+err.Error())
	}

	asset, err := h.container.Assets.Save(c.UserContext(), assets.SaveParams{
		UserID:      userID,
		ProjectID:   projectID,
		Operation:   op,
		ContentType: result.ContentType,
		Body:        bytes.NewReader(result.Output),
	})
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to store asset")
	}

	metadata := credits.Metadata{
		IsRegeneration:      req.IsRegeneration,
		SceneID:             req.SceneID,
		PrepaidRegeneration: prepaidConsumed,
	}

	resp := generateResponse{
		Success:       true,
		Asset:         asset,
		Provider:      selection.Provider,
		Model:         selection.Model,
		UserHasOwnKey: selection.UserHasOwnKey,
	}

	if chargeable {
		spend := h.container.Credits.SpendCredits(c.UserContext(), credits.SpendRequest{
			UserID:           userID,
			Amount:           creditCost,
			Type:             op.ActionType(),
			Description:      "generate " + op.String(),
			ProjectID:        projectID,
			Provider:         selection.Provider,
			Metadata:         metadata,
			RealCostOverride: realCostOverride(result.RealCost),
		})
		if !spend.Success {
			// The artifact was produced; losing the write-time race is still a
			// payment failure for the caller.
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":         spend.Error,
				"required":      creditCost,
				"balance":       spend.Balance,
				"needsPurchase": true,
			})
		}
		resp.CreditsCharged = creditCost
		resp.Balance = &spend.Balance
		return c.JSON(resp)
	}

	realCost := result.RealCost
	if !realCost.IsPositive() {
		realCost = h.container.Pricing.Cost(c.UserContext(), op.ActionType(), selection.Provider)
	}
	track := h.container.Credits.TrackRealCostOnly(c.UserContext(), credits.TrackRequest{
		UserID:      userID,
		RealCost:    realCost,
		Type:        op.ActionType(),
		Description: "generate " + op.String() + " (no charge)",
		ProjectID:   projectID,
		Provider:    selection.Provider,
		Metadata:    metadata,
	})
	if !track.Success {
		return httputil.WriteError(c, fiber.StatusInternalServerError, track.Error)
	}
	return c.JSON(resp)
}

type estimateRequest struct {
	Provider string `json:"provider"`
}

func (h *apiHandler) estimate(c *fiber.Ctx) error {
	op, ok := catalog.ParseOperation(c.Params("operation"))
	if !ok {
		return httputil.WriteError(c, fiber.StatusNotFound, "unknown operation")
	}

	var req estimateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	provider := catalog.ParseProvider(req.Provider)
	if req.Provider == "" || provider == catalog.ProviderUnknown {
		if sel, ok := catalog.DefaultSelection(op); ok {
			provider = sel.Provider
		}
	}

	return c.JSON(fiber.Map{
		"operation":     op,
		"provider":      provider,
		"credits":       h.container.Config.Credits.CostFor(op),
		"real_cost_usd": h.container.Pricing.Cost(c.UserContext(), op.ActionType(), provider),
	})
}

func overrideFrom(req generateRequest) *providerconfig.Override {
	if req.Provider == "" && req.Model == "" {
		return nil
	}
	override := &providerconfig.Override{Model: req.Model}
	if req.Provider != "" {
		override.Provider = catalog.ParseProvider(req.Provider)
	}
	return override
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func realCostOverride(reported decimal.Decimal) *decimal.Decimal {
	if !reported.IsPositive() {
		return nil
	}
	return &reported
}

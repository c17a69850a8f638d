package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/httpserver/httputil"
	"github.com/storyreel/backend/internal/services/stats"
)

func (h *apiHandler) balance(c *fiber.Ctx) error {
	userID := currentUserID(c)

	if balance, ok := h.container.BalanceCache.Get(c.UserContext(), userID); ok {
		return c.JSON(fiber.Map{
			"balance": balance,
			"cached":  true,
		})
	}

	acct, err := h.container.Credits.GetOrCreateAccount(c.UserContext(), userID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load credit account")
	}
	h.container.BalanceCache.Set(c.UserContext(), userID, acct.Balance)

	return c.JSON(fiber.Map{
		"balance":         acct.Balance,
		"total_spent":     acct.TotalSpent,
		"total_earned":    acct.TotalEarned,
		"total_real_cost": acct.TotalRealCost,
	})
}

func (h *apiHandler) transactions(c *fiber.Ctx) error {
	userID := currentUserID(c)

	txns, err := h.container.Transactions.UserTransactions(c.UserContext(), userID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load transactions")
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return httputil.WriteError(c, fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}
	if len(txns) > limit {
		txns = txns[:limit]
	}

	return c.JSON(fiber.Map{
		"transactions": txns,
		"count":        len(txns),
	})
}

func (h *apiHandler) statistics(c *fiber.Ctx) error {
	userID := currentUserID(c)

	result, err := h.container.Stats.UserStatistics(c.UserContext(), userID, c.Query("period"))
	if errors.Is(err, stats.ErrInvalidPeriod) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "period must look like 7d or 24h")
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to compute statistics")
	}
	return c.JSON(result)
}

func (h *apiHandler) projectStatistics(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid project id")
	}

	result, err := h.container.Stats.ProjectStatistics(c.UserContext(), projectID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to compute project statistics")
	}
	return c.JSON(result)
}

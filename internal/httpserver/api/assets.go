package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/storyreel/backend/internal/httpserver/httputil"
	"github.com/storyreel/backend/internal/storage/blob"
)

// assetOwnedBy restricts asset access to the user whose scope the key lives
// under. Keys are produced by the asset service as users/<id>/...; anything
// else is rejected rather than resolved.
func assetOwnedBy(key string, userID uuid.UUID) bool {
	return strings.HasPrefix(key, "users/"+userID.String()+"/")
}

func (h *apiHandler) downloadAsset(c *fiber.Ctx) error {
	key := strings.Trim(c.Params("*"), "/")
	if !assetOwnedBy(key, currentUserID(c)) {
		return httputil.WriteError(c, fiber.StatusNotFound, "asset not found")
	}

	reader, asset, err := h.container.Assets.Open(c.UserContext(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return httputil.WriteError(c, fiber.StatusNotFound, "asset not found")
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to load asset")
	}

	if asset.ContentType != "" {
		c.Set(fiber.HeaderContentType, asset.ContentType)
	}
	if asset.Size > 0 {
		return c.SendStream(reader, int(asset.Size))
	}
	return c.SendStream(reader)
}

func (h *apiHandler) deleteAsset(c *fiber.Ctx) error {
	key := strings.Trim(c.Params("*"), "/")
	if !assetOwnedBy(key, currentUserID(c)) {
		return httputil.WriteError(c, fiber.StatusNotFound, "asset not found")
	}

	err := h.container.Assets.Delete(c.UserContext(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return httputil.WriteError(c, fiber.StatusNotFound, "asset not found")
	}
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, "failed to delete asset")
	}
	return c.JSON(fiber.Map{"success": true})
}

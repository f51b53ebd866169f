package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
)

func (h *Handler) ListDrafts(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	list, err := h.Drafts.List(c.UserContext(), userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(list)
}

func (h *Handler) GetDraft(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	draft, found, err := h.Drafts.Get(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return common.RespondError(c, err)
	}
	if !found {
		return common.RespondError(c, common.NotFound("draft not found"))
	}
	return c.JSON(draft)
}

// SaveDraft stores the whole draft under the id in the path.
func (h *Handler) SaveDraft(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var draft models.Draft
	if err := c.BodyParser(&draft); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}
	draft.ID = c.Params("id")
	if draft.LastUpdated.IsZero() {
		draft.LastUpdated = time.Now().UTC()
	}

	if err := h.Drafts.Upsert(c.UserContext(), userID, draft); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(draft)
}

func (h *Handler) DeleteDraft(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	if err := h.Drafts.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/repository"
)

// GetFeed returns the newest memories across every board the user belongs
// to. A newer feed request from the same user supersedes an older one.
func (h *Handler) GetFeed(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	limit := c.QueryInt("limit", 0)

	boards, err := h.Boards.ListForUser(c.UserContext(), userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	memories, err := h.Feed.Load(c.UserContext(), userID, repository.AccessCodes(boards), userID, limit)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(memories)
}

func (h *Handler) GetBoardMemories(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	board, err := h.memberBoard(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	memories, err := h.Memories.FetchByAccessCode(c.UserContext(), board.AccessCode, userID, c.QueryInt("limit", 0))
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(memories)
}

// visibleMemory loads a memory and the viewer's board that holds it.
func (h *Handler) visibleMemory(c *fiber.Ctx, id, userID string) (models.Memory, models.Board, error) {
	memory, err := h.Memories.Get(c.UserContext(), id, userID)
	if err != nil {
		return models.Memory{}, models.Board{}, err
	}
	board, err := h.boardForCode(c.UserContext(), userID, memory.AccessCode)
	if err != nil {
		return models.Memory{}, models.Board{}, common.NotFound("memory not found")
	}
	return memory, board, nil
}

func (h *Handler) GetMemory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	memory, _, err := h.visibleMemory(c, c.Params("id"), userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(memory)
}

func (h *Handler) CreateMemory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.NewMemory
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	board, err := h.boardForCode(c.UserContext(), userID, req.AccessCode)
	if err != nil {
		return common.RespondError(c, err)
	}

	memory, err := h.Memories.Create(c.UserContext(), userID, req)
	if errors.Is(err, repository.ErrMediaItemsNotSaved) {
		// The memory exists; tell the client its media needs re-uploading.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"memory":  memory,
			"warning": "Your memory was saved but some photos could not be attached. Please try adding them again.",
		})
	}
	if err != nil {
		return common.RespondError(c, err)
	}

	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventMemoryCreated,
		BoardID: board.ID,
		UserID:  userID,
		Data:    memory,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"memory": memory})
}

func (h *Handler) UpdateMemory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	id := c.Params("id")

	var patch models.MemoryPatch
	if err := c.BodyParser(&patch); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	_, board, err := h.visibleMemory(c, id, userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	memory, err := h.Memories.Update(c.UserContext(), userID, id, patch)
	if err != nil {
		return common.RespondError(c, err)
	}

	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventMemoryUpdated,
		BoardID: board.ID,
		UserID:  userID,
		Data:    memory,
	})
	return c.JSON(memory)
}

func (h *Handler) DeleteMemory(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	id := c.Params("id")

	existing, board, err := h.visibleMemory(c, id, userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	deleted, err := h.Memories.Delete(c.UserContext(), userID, id, existing.AccessCode)
	if err != nil {
		return common.RespondError(c, err)
	}

	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventMemoryDeleted,
		BoardID: board.ID,
		UserID:  userID,
		Data:    fiber.Map{"id": deleted.ID},
	})
	return c.JSON(deleted)
}

func (h *Handler) ToggleLike(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	id := c.Params("id")

	_, board, err := h.visibleMemory(c, id, userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	state, err := h.Memories.ToggleLike(c.UserContext(), id, userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventLikeToggled,
		BoardID: board.ID,
		UserID:  userID,
		Data:    fiber.Map{"memoryId": id, "count": state.Count},
	})
	return c.JSON(state)
}

// ReplaceMedia rewrites a carousel's media items in the order given.
func (h *Handler) ReplaceMedia(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	id := c.Params("id")

	var req models.ReplaceMediaRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	_, board, err := h.visibleMemory(c, id, userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	memory, err := h.Memories.ReplaceMedia(c.UserContext(), userID, id, req.Items)
	if err != nil {
		return common.RespondError(c, err)
	}

	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventMemoryUpdated,
		BoardID: board.ID,
		UserID:  userID,
		Data:    memory,
	})
	return c.JSON(memory)
}

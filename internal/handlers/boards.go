package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
)

func (h *Handler) GetBoards(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	boards, err := h.Boards.ListForUser(c.UserContext(), userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(boards)
}

func (h *Handler) GetBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	board, err := h.memberBoard(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(board)
}

func (h *Handler) CreateBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req models.CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	board, err := h.Boards.Create(c.UserContext(), req.Name, userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(board)
}

func (h *Handler) RenameBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	boardID := c.Params("id")

	var req models.RenameBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	result, err := h.Boards.Rename(c.UserContext(), boardID, req.Name, userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(result)
	}

	h.Hub.Broadcast(boardID, userID, models.Event{
		Type:    models.EventBoardRenamed,
		BoardID: boardID,
		UserID:  userID,
		Data:    fiber.Map{"name": result.NewName},
	})
	return c.JSON(result)
}

// JoinBoard joins a board via its share code
func (h *Handler) JoinBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	code := c.Params("code")
	if code == "" {
		var req models.JoinBoardRequest
		if err := c.BodyParser(&req); err != nil {
			return common.BadRequest(c, "Invalid request body")
		}
		code = req.ShareCode
	}

	result, err := h.Boards.JoinByShareCode(c.UserContext(), code, userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(result)
	}

	board := *result.Board
	h.Hub.Broadcast(board.ID, userID, models.Event{
		Type:    models.EventMemberJoined,
		BoardID: board.ID,
		UserID:  userID,
	})
	if h.Notifier != nil {
		h.detach(c, "notify member joined", func(ctx context.Context) error {
			return h.Notifier.MemberJoined(ctx, board, userID)
		})
	}
	return c.JSON(result)
}

// LeaveBoard removes the current user from a board. The last member leaving
// deletes the board and its memories.
func (h *Handler) LeaveBoard(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	boardID := c.Params("id")

	result, err := h.Boards.RemoveMember(c.UserContext(), boardID, userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	if !result.Success {
		return c.Status(fiber.StatusNotFound).JSON(result)
	}

	if !result.BoardDeleted {
		h.Hub.Broadcast(boardID, userID, models.Event{
			Type:    models.EventMemberLeft,
			BoardID: boardID,
			UserID:  userID,
		})
	}
	return c.JSON(result)
}

// GetMembers lists the board's members with their display names.
func (h *Handler) GetMembers(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	board, err := h.memberBoard(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return common.RespondError(c, err)
	}

	var members []models.BoardMember
	if err := h.DB.WithContext(c.UserContext()).
		Where("board_id = ?", board.ID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return common.RespondError(c, err)
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	var users []models.User
	if len(ids) > 0 {
		h.DB.WithContext(c.UserContext()).Where("id IN ?", ids).Find(&users)
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayLabel()
	}

	out := make([]fiber.Map, len(members))
	for i, m := range members {
		out[i] = fiber.Map{
			"userId":   m.UserID,
			"name":     names[m.UserID],
			"role":     m.Role,
			"joinedAt": m.JoinedAt,
		}
	}
	return c.JSON(out)
}

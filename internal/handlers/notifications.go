package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
)

// GetNotifications returns paginated notifications for the current user
func (h *Handler) GetNotifications(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	offset := (page - 1) * limit

	db := h.DB.WithContext(c.UserContext())

	var notifications []models.Notification
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return common.RespondError(c, err)
	}

	var total int64
	db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&total)

	var unread int64
	db.Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&unread)

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         total,
		"unread":        unread,
		"page":          page,
		"limit":         limit,
	})
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	result := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", c.Params("id"), userID).
		Update("read", true)
	if result.Error != nil {
		return common.RespondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return common.RespondError(c, common.NotFound("notification not found"))
	}

	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead marks all notifications as read for the current user
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	if err := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error; err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// RegisterDeviceToken saves the FCM token for push notifications
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return common.BadRequest(c, "Token is required")
	}

	if err := h.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", req.Token).Error; err != nil {
		return common.RespondError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

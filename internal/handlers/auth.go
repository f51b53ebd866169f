package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
)

func (h *Handler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return common.BadRequest(c, "Email and password are required")
	}
	if len(req.Password) < 6 {
		return common.BadRequest(c, "Password must be at least 6 characters")
	}

	// Check if user exists
	var existing models.User
	err := h.DB.WithContext(c.UserContext()).Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   fiber.Map{"type": common.TypeValidation, "message": "Email already registered"},
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return common.RespondError(c, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return common.RespondError(c, common.Wrap(err, common.TypeUnknown, "hash password"))
	}

	user := models.User{
		Email:    req.Email,
		Password: string(hashed),
		Name:     req.Name,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&user).Error; err != nil {
		return common.RespondError(c, err)
	}

	token, err := h.Auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return common.RespondError(c, common.Wrap(err, common.TypeUnknown, "generate token"))
	}

	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return common.BadRequest(c, "Email and password are required")
	}

	invalid := &common.AppError{
		Type:        common.TypeNotAuthenticated,
		Message:     "invalid credentials",
		UserMessage: "Invalid email or password",
	}

	var user models.User
	if err := h.DB.WithContext(c.UserContext()).Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.RespondError(c, invalid)
		}
		return common.RespondError(c, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return common.RespondError(c, invalid)
	}

	token, err := h.Auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		return common.RespondError(c, common.Wrap(err, common.TypeUnknown, "generate token"))
	}

	return c.JSON(models.AuthResponse{
		Token: token,
		User:  user,
	})
}

func (h *Handler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var user models.User
	if err := h.DB.WithContext(c.UserContext()).Where("id = ?", userID).First(&user).Error; err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(user)
}

type updateProfileRequest struct {
	Name        *string `json:"name"`
	DisplayName *string `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl"`
}

func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return common.BadRequest(c, "Invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*req.AvatarURL)
	}

	db := h.DB.WithContext(c.UserContext())
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return common.RespondError(c, err)
		}
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		return common.RespondError(c, err)
	}
	return c.JSON(user)
}

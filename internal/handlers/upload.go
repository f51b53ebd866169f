package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/services"
)

// UploadMedia stores one photo or video and returns its public URL.
func (h *Handler) UploadMedia(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		return common.BadRequest(c, "No file provided")
	}
	if !services.AllowedExtension(file.Filename) {
		return common.BadRequest(c, "Only jpg, png, webp, heic, mp4 and mov files are allowed")
	}
	if file.Size > services.MaxUploadSize {
		return common.BadRequest(c, "File must be under 50MB")
	}

	src, err := file.Open()
	if err != nil {
		return common.RespondError(c, common.Wrap(err, common.TypeUnknown, "open upload"))
	}
	defer src.Close()

	url, err := h.Uploader.Upload(c.UserContext(), src, file.Filename, userID)
	if err != nil {
		return common.RespondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

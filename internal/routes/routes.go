package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arnold/memories-api/internal/handlers"
	"github.com/arnold/memories-api/internal/middleware"
)

func Setup(app *fiber.App, h *handlers.Handler, uploadDir, uploadPrefix string) {
	app.Use(middleware.Metrics())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if uploadDir != "" {
		app.Static(uploadPrefix, uploadDir)
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	protected := api.Group("/", h.Auth.Protected())

	protected.Get("/me", h.GetMe)
	protected.Put("/me", h.UpdateProfile)

	boards := protected.Group("/boards")
	boards.Get("/", h.GetBoards)
	boards.Post("/", h.CreateBoard)
	boards.Post("/join", h.JoinBoard)
	boards.Get("/:id", h.GetBoard)
	boards.Put("/:id", h.RenameBoard)
	boards.Get("/:id/members", h.GetMembers)
	boards.Post("/:id/leave", h.LeaveBoard)
	boards.Get("/:id/memories", h.GetBoardMemories)

	// Join board via share code
	protected.Post("/invites/:code/join", h.JoinBoard)

	protected.Get("/feed", h.GetFeed)

	memories := protected.Group("/memories")
	memories.Post("/", h.CreateMemory)
	memories.Get("/:id", h.GetMemory)
	memories.Patch("/:id", h.UpdateMemory)
	memories.Delete("/:id", h.DeleteMemory)
	memories.Post("/:id/like", h.ToggleLike)
	memories.Put("/:id/media", h.ReplaceMedia)

	drafts := protected.Group("/drafts")
	drafts.Get("/", h.ListDrafts)
	drafts.Get("/:id", h.GetDraft)
	drafts.Put("/:id", h.SaveDraft)
	drafts.Delete("/:id", h.DeleteDraft)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", h.GetNotifications)
	notifications.Put("/:id/read", h.MarkNotificationRead)
	notifications.Post("/read-all", h.MarkAllRead)

	// Device token for push notifications
	protected.Post("/device-token", h.RegisterDeviceToken)

	// File upload
	protected.Post("/upload", h.UploadMedia)

	// WebSocket for real-time board updates
	app.Get("/ws/boards/:id", h.WebSocketUpgrade(), websocket.New(h.HandleWebSocket))
}

package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/drafts"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/middleware"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/repository"
	"github.com/arnold/memories-api/internal/services"
)

const detachedTimeout = 30 * time.Second

// Handler holds the dependencies shared by every route.
type Handler struct {
	DB       *gorm.DB
	Auth     *middleware.Auth
	Boards   *repository.BoardRepository
	Memories *repository.MemoryRepository
	Feed     *repository.FeedLoader
	Drafts   *drafts.Remote
	Uploader services.Uploader
	Notifier *services.Notifier
	Hub      *Hub

	log zerolog.Logger
}

type Deps struct {
	DB       *gorm.DB
	Auth     *middleware.Auth
	Boards   *repository.BoardRepository
	Memories *repository.MemoryRepository
	Drafts   *drafts.Remote
	Uploader services.Uploader
	Notifier *services.Notifier
	Hub      *Hub
}

func New(d Deps) *Handler {
	hub := d.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Handler{
		DB:       d.DB,
		Auth:     d.Auth,
		Boards:   d.Boards,
		Memories: d.Memories,
		Feed:     repository.NewFeedLoader(d.Memories),
		Drafts:   d.Drafts,
		Uploader: d.Uploader,
		Notifier: d.Notifier,
		Hub:      hub,
		log:      logger.Component("http"),
	}
}

// boardForCode returns the viewer's board that owns accessCode. A code the
// viewer cannot see is reported as not found.
func (h *Handler) boardForCode(ctx context.Context, userID, accessCode string) (models.Board, error) {
	boards, err := h.Boards.ListForUser(ctx, userID)
	if err != nil {
		return models.Board{}, err
	}
	for _, b := range boards {
		if b.AccessCode == accessCode {
			return b, nil
		}
	}
	return models.Board{}, common.NotFound("board not found for access code")
}

// memberBoard loads a board and checks that userID belongs to it.
func (h *Handler) memberBoard(ctx context.Context, boardID, userID string) (models.Board, error) {
	board, err := h.Boards.Get(ctx, boardID)
	if err != nil {
		return models.Board{}, err
	}
	if !board.HasMember(userID) {
		return models.Board{}, common.NotFound("board not found")
	}
	return board, nil
}

// detach runs fn after the response is sent, bounded by its own timeout.
func (h *Handler) detach(c *fiber.Ctx, what string, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(c.UserContext())
	go func() {
		defer func() {
			if p := recover(); p != nil {
				h.log.Error().Interface("panic", p).Str("task", what).Msg("background task panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, detachedTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			h.log.Warn().Err(err).Str("task", what).Msg("background task failed")
		}
	}()
}

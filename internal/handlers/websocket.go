package handlers

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/models"
)

// connection wraps a websocket connection with its user ID
type connection struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func (c *connection) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub manages WebSocket connections per board
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]bool // boardID -> set of connections
	log   zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*connection]bool),
		log:   logger.Component("ws"),
	}
}

// register adds a connection to a board room
func (h *Hub) register(boardID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[boardID] == nil {
		h.rooms[boardID] = make(map[*connection]bool)
	}
	h.rooms[boardID][conn] = true
	h.log.Debug().Str("user_id", conn.userID).Str("board_id", boardID).Int("total", len(h.rooms[boardID])).Msg("ws register")
}

// unregister removes a connection from a board room
func (h *Hub) unregister(boardID string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[boardID]; ok {
		delete(conns, conn)
		h.log.Debug().Str("user_id", conn.userID).Str("board_id", boardID).Int("remaining", len(conns)).Msg("ws unregister")
		if len(conns) == 0 {
			delete(h.rooms, boardID)
		}
	}
}

// Connections returns how many clients are in a board room.
func (h *Hub) Connections(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

// Broadcast sends an event to all connections in a board room, excluding the sender
func (h *Hub) Broadcast(boardID, excludeUserID string, event models.Event) {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.rooms[boardID]))
	for c := range h.rooms[boardID] {
		// Don't send to the user who triggered the event
		if c.userID != excludeUserID {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	msg, err := json.Marshal(event)
	if err != nil {
		h.log.Warn().Err(err).Str("type", event.Type).Msg("ws broadcast marshal error")
		return
	}

	for _, c := range conns {
		if err := c.write(msg); err != nil {
			h.log.Debug().Err(err).Str("user_id", c.userID).Msg("ws write error")
		}
	}
}

// WebSocketUpgrade checks the upgrade request, validates the JWT and
// confirms the user belongs to the board.
func (h *Handler) WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// Authenticate via query param: ?token=<jwt>
		tokenString := c.Query("token")
		if tokenString == "" {
			// Also check Authorization header for non-browser clients
			authHeader := c.Get("Authorization")
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				tokenString = ""
			}
		}
		if tokenString == "" {
			return common.RespondError(c, common.ErrNotAuthenticated)
		}

		claims, err := h.Auth.Parse(tokenString)
		if err != nil {
			return common.RespondError(c, common.ErrNotAuthenticated)
		}

		if boardID := c.Params("id"); boardID != "" {
			if _, err := h.memberBoard(c.UserContext(), boardID, claims.UserID); err != nil {
				return common.RespondError(c, err)
			}
		}

		c.Locals("userId", claims.UserID)
		return c.Next()
	}
}

// HandleWebSocket keeps a client in its board room until it disconnects.
func (h *Handler) HandleWebSocket(c *websocket.Conn) {
	boardID := c.Params("id")
	userID, ok := c.Locals("userId").(string)
	if !ok || boardID == "" {
		c.Close()
		return
	}

	conn := &connection{conn: c, userID: userID}
	h.Hub.register(boardID, conn)
	defer h.Hub.unregister(boardID, conn)

	// Clients only send keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

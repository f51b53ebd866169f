package services

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/models"
)

// Broadcaster delivers an event to everyone connected to a board except
// the user who caused it.
type Broadcaster interface {
	Broadcast(boardID, excludeUserID string, event models.Event)
}

// Notifier tells board members about new memories: a notification row, a
// push message and a websocket event.
type Notifier struct {
	db   *gorm.DB
	push *PushService
	hub  Broadcaster
	log  zerolog.Logger
}

func NewNotifier(db *gorm.DB, push *PushService, hub Broadcaster) *Notifier {
	return &Notifier{db: db, push: push, hub: hub, log: logger.Component("notifier")}
}

// MemoryCreated notifies the other members of the board the memory was
// posted to.
func (n *Notifier) MemoryCreated(ctx context.Context, memory models.Memory, authorID string) error {
	var board models.BoardRecord
	if err := n.db.WithContext(ctx).Where("access_code = ?", memory.AccessCode).First(&board).Error; err != nil {
		return err
	}

	author := "Someone"
	var user models.User
	if err := n.db.WithContext(ctx).Where("id = ?", authorID).First(&user).Error; err == nil && user.DisplayLabel() != "" {
		author = user.DisplayLabel()
	}

	metadata := map[string]string{
		"boardId":  board.ID,
		"memoryId": memory.ID,
	}
	title := board.Name
	body := author + " added a new memory"
	if err := n.notifyBoardMembers(ctx, board.ID, authorID, models.NotificationMemoryCreated, title, body, metadata); err != nil {
		return err
	}

	if n.hub != nil {
		n.hub.Broadcast(board.ID, authorID, models.Event{
			Type:    models.EventMemoryCreated,
			BoardID: board.ID,
			UserID:  authorID,
			Data:    memory,
		})
	}
	return nil
}

// MemberJoined tells existing members that userID joined the board.
func (n *Notifier) MemberJoined(ctx context.Context, board models.Board, userID string) error {
	name := "Someone"
	var user models.User
	if err := n.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err == nil && user.DisplayLabel() != "" {
		name = user.DisplayLabel()
	}
	return n.notifyBoardMembers(ctx, board.ID, userID, models.NotificationMemberJoined,
		board.Name, name+" joined the board", map[string]string{"boardId": board.ID})
}

func (n *Notifier) notifyBoardMembers(ctx context.Context, boardID, excludeUserID, notifType, title, body string, metadata map[string]string) error {
	var members []models.BoardMember
	if err := n.db.WithContext(ctx).
		Where("board_id = ? AND user_id <> ?", boardID, excludeUserID).
		Find(&members).Error; err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	var meta *string
	if data, err := json.Marshal(metadata); err == nil {
		s := string(data)
		meta = &s
	}

	notifications := make([]models.Notification, 0, len(members))
	for _, m := range members {
		notifications = append(notifications, models.Notification{
			UserID:   m.UserID,
			Type:     notifType,
			Title:    title,
			Body:     body,
			Metadata: meta,
		})
	}
	if err := n.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return err
	}

	pushData := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		pushData[k] = v
	}
	pushData["type"] = notifType
	for _, m := range members {
		n.push.SendToUser(ctx, m.UserID, title, body, pushData)
	}

	n.log.Debug().
		Str("board_id", boardID).
		Str("type", notifType).
		Int("recipients", len(members)).
		Msg("notified board members")
	return nil
}

package models

// Event types sent to board rooms over WebSocket
const (
	EventMemoryCreated = "memory_created"
	EventMemoryUpdated = "memory_updated"
	EventMemoryDeleted = "memory_deleted"
	EventLikeToggled   = "like_toggled"
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventBoardRenamed  = "board_renamed"
)

// Event is the JSON message sent to connected clients.
type Event struct {
	Type    string `json:"type"`
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
	Data    any    `json:"data,omitempty"`
}

// Notification types
const (
	NotificationMemoryCreated = "memory_created"
	NotificationMemberJoined  = "member_joined"
)

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	UserID    string    `json:"userId" gorm:"size:64;index;not null"`
	Type      string    `json:"type" gorm:"not null"` // memory_created, member_joined
	Title     string    `json:"title" gorm:"not null"`
	Body      string    `json:"body"`
	Read      bool      `json:"read" gorm:"default:false"`
	Metadata  *string   `json:"metadata"` // JSON string for navigation context (boardId, memoryId)
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"time"
)

// Draft is an unpublished memory being edited. It is cached locally and
// mirrored to the drafts table.
type Draft struct {
	ID          string      `json:"id"`
	Memory      DraftMemory `json:"memory"`
	BoardID     *string     `json:"boardId"`
	MediaItems  []MediaItem `json:"mediaItems"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// DraftMemory holds whichever memory fields have been filled in so far.
type DraftMemory struct {
	Kind            *MemoryKind `json:"kind,omitempty"`
	Caption         *string     `json:"caption,omitempty"`
	EventDate       *time.Time  `json:"eventDate,omitempty"`
	Location        *string     `json:"location,omitempty"`
	AccessCode      *string     `json:"accessCode,omitempty"`
	PrimaryMediaURL *string     `json:"primaryMediaUrl,omitempty"`
}

// DraftRecord is the remote copy. Payload is the JSON encoded Draft. Draft
// ids are chosen by clients, so they are unique per user only.
type DraftRecord struct {
	UserID      string    `gorm:"primaryKey;size:64"`
	ID          string    `gorm:"primaryKey;size:64"`
	BoardID     *string   `gorm:"size:64"`
	Payload     string    `gorm:"type:text;not null"`
	LastUpdated time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (DraftRecord) TableName() string { return "drafts" }

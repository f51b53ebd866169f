package models

import (
	"strings"
	"time"

	"github.com/arnold/memories-api/internal/common"
)

type MemoryKind string

const (
	KindPhoto    MemoryKind = "photo"
	KindVideo    MemoryKind = "video"
	KindNote     MemoryKind = "note"
	KindCarousel MemoryKind = "carousel"
)

func (k MemoryKind) Valid() bool {
	switch k {
	case KindPhoto, KindVideo, KindNote, KindCarousel:
		return true
	}
	return false
}

// MemoryRecord is the persisted shape of a memory. Kind is nullable: rows
// written before the discriminator existed only carry IsVideo.
type MemoryRecord struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Kind       *string   `gorm:"size:16"`
	Caption    *string   `gorm:"type:text"`
	EventDate  time.Time `gorm:"index;not null"`
	Location   *string
	AccessCode string  `gorm:"size:16;index;not null"`
	CreatedBy  *string `gorm:"size:64"`
	MediaURL   *string
	IsVideo    *bool
	LikeCount  int `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (MemoryRecord) TableName() string { return "memories" }

// Memory is a single shared item as seen by one viewer.
type Memory struct {
	ID              string      `json:"id"`
	Kind            MemoryKind  `json:"kind"`
	Caption         *string     `json:"caption,omitempty"`
	EventDate       time.Time   `json:"eventDate"`
	Location        *string     `json:"location,omitempty"`
	AccessCode      string      `json:"accessCode"`
	CreatedBy       *string     `json:"createdBy,omitempty"`
	LikeCount       int         `json:"likeCount"`
	ViewerHasLiked  bool        `json:"viewerHasLiked"`
	PrimaryMediaURL *string     `json:"primaryMediaUrl,omitempty"`
	MediaItems      []MediaItem `json:"mediaItems,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// NewMemory is the payload of a create. ID is normally generated by the
// client before upload starts; it is filled in when absent.
type NewMemory struct {
	ID              string         `json:"id"`
	Kind            MemoryKind     `json:"kind"`
	Caption         *string        `json:"caption"`
	EventDate       time.Time      `json:"eventDate"`
	Location        *string        `json:"location"`
	AccessCode      string         `json:"accessCode"`
	PrimaryMediaURL *string        `json:"primaryMediaUrl"`
	MediaItems      []NewMediaItem `json:"mediaItems"`
}

// Validate enforces the shape invariant: photo and video carry a media URL,
// notes carry none, carousels carry at least one item.
func (m NewMemory) Validate() error {
	if strings.TrimSpace(m.AccessCode) == "" {
		return common.Validation("An access code is required")
	}
	if !m.Kind.Valid() {
		return common.Validation("Kind must be one of photo, video, note or carousel")
	}
	if m.EventDate.IsZero() {
		return common.Validation("An event date is required")
	}

	hasURL := m.PrimaryMediaURL != nil && strings.TrimSpace(*m.PrimaryMediaURL) != ""
	switch m.Kind {
	case KindPhoto, KindVideo:
		if !hasURL {
			return common.Validation("Photos and videos need a media URL")
		}
		if len(m.MediaItems) > 0 {
			return common.Validation("Only carousels can have media items")
		}
	case KindNote:
		if hasURL || len(m.MediaItems) > 0 {
			return common.Validation("Notes cannot carry media")
		}
	case KindCarousel:
		if len(m.MediaItems) == 0 {
			return common.Validation("A carousel needs at least one media item")
		}
		for _, item := range m.MediaItems {
			if strings.TrimSpace(item.URL) == "" {
				return common.Validation("Every media item needs a URL")
			}
		}
	}
	return nil
}

// MemoryPatch is a field-level update. Fields left unset are not sent to
// the store; fields set to null are cleared.
type MemoryPatch struct {
	Caption   Optional[string]    `json:"caption"`
	Location  Optional[string]    `json:"location"`
	EventDate Optional[time.Time] `json:"eventDate"`
}

// Values returns only the columns present in the patch.
func (p MemoryPatch) Values() (map[string]any, error) {
	values := map[string]any{}
	if p.Caption.Set {
		values["caption"] = p.Caption.Ptr()
	}
	if p.Location.Set {
		values["location"] = p.Location.Ptr()
	}
	if p.EventDate.Set {
		if p.EventDate.Value == nil || p.EventDate.Value.IsZero() {
			return nil, common.Validation("The event date cannot be cleared")
		}
		values["event_date"] = p.EventDate.Value.UTC()
	}
	if len(values) == 0 {
		return nil, common.Validation("Nothing to update")
	}
	return values, nil
}

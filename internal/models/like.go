package models

import (
	"time"
)

// Like is the edge between a viewer and a memory they liked.
type Like struct {
	MemoryID  string    `json:"memoryId" gorm:"primaryKey;size:64"`
	UserID    string    `json:"userId" gorm:"primaryKey;size:64"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Like) TableName() string { return "memory_likes" }

// LikeState is the per-viewer like view of one memory.
type LikeState struct {
	Count          int  `json:"count"`
	ViewerHasLiked bool `json:"viewerHasLiked"`
}

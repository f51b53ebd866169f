package models

// MediaItem is one ordered element of a carousel memory. Order is stored
// as sort_order and is contiguous from 0.
type MediaItem struct {
	ID       string `json:"id" gorm:"primaryKey;size:64"`
	MemoryID string `json:"memoryId" gorm:"size:64;not null;uniqueIndex:idx_media_memory_order"`
	URL      string `json:"url" gorm:"not null"`
	IsVideo  bool   `json:"isVideo" gorm:"default:false"`
	Order    int    `json:"order" gorm:"column:sort_order;not null;uniqueIndex:idx_media_memory_order"`
}

func (MediaItem) TableName() string { return "memory_media" }

type NewMediaItem struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	IsVideo bool   `json:"isVideo"`
}

type ReplaceMediaRequest struct {
	Items []NewMediaItem `json:"items"`
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// BoardMember is one membership edge. The owner is stored as a member with
// role "owner".
type BoardMember struct {
	BoardID  string    `json:"boardId" gorm:"primaryKey;size:64"`
	UserID   string    `json:"userId" gorm:"primaryKey;size:64;index"`
	Role     string    `json:"role" gorm:"not null;default:'member'"` // owner, member
	JoinedAt time.Time `json:"joinedAt"`
}

func (BoardMember) TableName() string { return "board_members" }

func (bm *BoardMember) BeforeCreate(tx *gorm.DB) error {
	if bm.JoinedAt.IsZero() {
		bm.JoinedAt = time.Now().UTC()
	}
	return nil
}

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

package models

import (
	"time"
)

// BoardRecord is the persisted board row. Membership lives in board_members.
type BoardRecord struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"not null"`
	AccessCode string    `gorm:"size:16;uniqueIndex;not null"`
	ShareCode  string    `gorm:"size:16;uniqueIndex;not null"`
	OwnerID    string    `gorm:"size:64;index;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BoardRecord) TableName() string { return "boards" }

// Board is a named collection of memories reachable through its access code.
type Board struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AccessCode string    `json:"accessCode"`
	ShareCode  string    `json:"shareCode"`
	OwnerID    string    `json:"ownerId"`
	MemberIDs  []string  `json:"memberIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasMember reports whether userID owns or belongs to the board.
func (b Board) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	if b.OwnerID == userID {
		return true
	}
	for _, id := range b.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Board DTOs
type CreateBoardRequest struct {
	Name string `json:"name"`
}

type RenameBoardRequest struct {
	Name string `json:"name"`
}

type JoinBoardRequest struct {
	ShareCode string `json:"shareCode"`
}

type JoinResult struct {
	Success bool   `json:"success"`
	Board   *Board `json:"board,omitempty"`
	Message string `json:"message"`
}

type RenameResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	NewName *string `json:"newName,omitempty"`
}

type RemoveMemberResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	BoardDeleted bool   `json:"boardDeleted"`
}

package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/models"
)

func builtinProcedures() map[string]Procedure {
	return map[string]Procedure{
		ProcCreateBoardWithOwner: createBoardWithOwner,
		ProcRenameBoard:          renameBoard,
		ProcAddMemberByShareCode: addMemberByShareCode,
		ProcRemoveMember:         removeMember,
		ProcToggleLike:           toggleLike,
		ProcLikeSummary:          likeSummary,
		ProcReplaceMedia:         replaceMedia,
	}
}

func stringArg(args Row, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", common.Validation(fmt.Sprintf("missing argument %s", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", common.Validation(fmt.Sprintf("argument %s must be a string", key))
	}
	return s, nil
}

func stringArgs(args Row, keys ...string) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		s, err := stringArg(args, k)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// createBoardWithOwner inserts a board and its owner membership. A clash on
// either code is reported as {conflict: true} so the caller can regenerate.
func createBoardWithOwner(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "name", "owner_id", "access_code", "share_code")
	if err != nil {
		return nil, err
	}
	name, ownerID, accessCode, shareCode := strings.TrimSpace(a[0]), a[1], a[2], a[3]
	if name == "" {
		return nil, common.Validation("Board name cannot be empty")
	}

	var clashes int64
	if err := tx.Model(&models.BoardRecord{}).
		Where("access_code IN ? OR share_code IN ?", []string{accessCode, shareCode}, []string{accessCode, shareCode}).
		Count(&clashes).Error; err != nil {
		return nil, err
	}
	if clashes > 0 {
		return Row{"conflict": true}, nil
	}

	board := models.BoardRecord{
		ID:         uuid.NewString(),
		Name:       name,
		AccessCode: accessCode,
		ShareCode:  shareCode,
		OwnerID:    ownerID,
	}
	if err := tx.Create(&board).Error; err != nil {
		return nil, err
	}
	owner := models.BoardMember{BoardID: board.ID, UserID: ownerID, Role: models.RoleOwner}
	if err := tx.Create(&owner).Error; err != nil {
		return nil, err
	}
	return Row{"board_id": board.ID}, nil
}

func isMember(tx *gorm.DB, boardID, userID string) (bool, error) {
	var n int64
	err := tx.Model(&models.BoardMember{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&n).Error
	return n > 0, err
}

func renameBoard(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "board_id", "user_id", "name")
	if err != nil {
		return nil, err
	}
	boardID, userID, name := a[0], a[1], strings.TrimSpace(a[2])
	if name == "" {
		return Row{"success": false, "message": "Board name cannot be empty"}, nil
	}

	var board models.BoardRecord
	if err := tx.Where("id = ?", boardID).Limit(1).Find(&board).Error; err != nil {
		return nil, err
	}
	member, err := isMember(tx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if board.ID == "" || (!member && board.OwnerID != userID) {
		return Row{"success": false, "message": "Board not found or you are not a member"}, nil
	}

	if err := tx.Model(&board).Updates(map[string]any{"name": name, "updated_at": time.Now().UTC()}).Error; err != nil {
		return nil, err
	}
	return Row{"success": true, "message": "Board renamed", "new_name": name}, nil
}

func addMemberByShareCode(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "share_code", "user_id")
	if err != nil {
		return nil, err
	}
	shareCode, userID := strings.ToUpper(strings.TrimSpace(a[0])), a[1]

	var board models.BoardRecord
	if err := tx.Where("share_code = ?", shareCode).Limit(1).Find(&board).Error; err != nil {
		return nil, err
	}
	if board.ID == "" {
		return Row{"success": false, "message": "No board matches that share code"}, nil
	}

	member, err := isMember(tx, board.ID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return Row{"success": true, "message": "You're already a member of this board", "board_id": board.ID}, nil
	}

	edge := models.BoardMember{BoardID: board.ID, UserID: userID, Role: models.RoleMember}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
		return nil, err
	}
	return Row{"success": true, "message": "You joined " + board.Name, "board_id": board.ID}, nil
}

// removeMember drops one membership. When the owner leaves, ownership passes
// to the longest-standing member; when nobody is left the board and all of
// its memories go with it.
func removeMember(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "board_id", "user_id")
	if err != nil {
		return nil, err
	}
	boardID, userID := a[0], a[1]

	res := tx.Where("board_id = ? AND user_id = ?", boardID, userID).Delete(&models.BoardMember{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return Row{"removed": false, "board_deleted": false}, nil
	}

	var remaining []models.BoardMember
	if err := tx.Where("board_id = ?", boardID).Order("joined_at ASC").Find(&remaining).Error; err != nil {
		return nil, err
	}

	var board models.BoardRecord
	if err := tx.Where("id = ?", boardID).Limit(1).Find(&board).Error; err != nil {
		return nil, err
	}
	if board.ID == "" {
		return Row{"removed": true, "board_deleted": false}, nil
	}

	if len(remaining) > 0 {
		if board.OwnerID == userID {
			next := remaining[0]
			if err := tx.Model(&board).Update("owner_id", next.UserID).Error; err != nil {
				return nil, err
			}
			if err := tx.Model(&models.BoardMember{}).
				Where("board_id = ? AND user_id = ?", boardID, next.UserID).
				Update("role", models.RoleOwner).Error; err != nil {
				return nil, err
			}
		}
		return Row{"removed": true, "board_deleted": false}, nil
	}

	if err := deleteBoardContents(tx, board); err != nil {
		return nil, err
	}
	return Row{"removed": true, "board_deleted": true}, nil
}

func deleteBoardContents(tx *gorm.DB, board models.BoardRecord) error {
	var memoryIDs []string
	if err := tx.Model(&models.MemoryRecord{}).
		Where("access_code = ?", board.AccessCode).
		Pluck("id", &memoryIDs).Error; err != nil {
		return err
	}
	if len(memoryIDs) > 0 {
		if err := tx.Where("memory_id IN ?", memoryIDs).Delete(&models.MediaItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("memory_id IN ?", memoryIDs).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", memoryIDs).Delete(&models.MemoryRecord{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("board_id = ?", board.ID).Delete(&models.DraftRecord{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", board.ID).Delete(&models.BoardRecord{}).Error
}

// toggleLike flips the viewer's like and returns the state after the flip.
func toggleLike(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "memory_id", "viewer_id")
	if err != nil {
		return nil, err
	}
	memoryID, viewerID := a[0], a[1]

	var exists int64
	if err := tx.Model(&models.MemoryRecord{}).Where("id = ?", memoryID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, common.NotFound("memory not found")
	}

	res := tx.Where("memory_id = ? AND user_id = ?", memoryID, viewerID).Delete(&models.Like{})
	if res.Error != nil {
		return nil, res.Error
	}
	liked := res.RowsAffected == 0
	if liked {
		edge := models.Like{MemoryID: memoryID, UserID: viewerID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			return nil, err
		}
	}

	var count int64
	if err := tx.Model(&models.Like{}).Where("memory_id = ?", memoryID).Count(&count).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.MemoryRecord{}).Where("id = ?", memoryID).Update("like_count", count).Error; err != nil {
		return nil, err
	}
	return Row{"count": count, "viewer_has_liked": liked}, nil
}

func likeSummary(tx *gorm.DB, args Row) (Row, error) {
	a, err := stringArgs(args, "memory_id", "viewer_id")
	if err != nil {
		return nil, err
	}
	memoryID, viewerID := a[0], a[1]

	var count, mine int64
	if err := tx.Model(&models.Like{}).Where("memory_id = ?", memoryID).Count(&count).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Like{}).Where("memory_id = ? AND user_id = ?", memoryID, viewerID).Count(&mine).Error; err != nil {
		return nil, err
	}
	return Row{"count": count, "viewer_has_liked": mine > 0}, nil
}

// replaceMedia swaps a carousel's whole item set. The old items go and the
// new ones arrive in one transaction, so a failure leaves the old set.
func replaceMedia(tx *gorm.DB, args Row) (Row, error) {
	memoryID, err := stringArg(args, "memory_id")
	if err != nil {
		return nil, err
	}
	items, ok := args["items"].([]models.MediaItem)
	if !ok || len(items) == 0 {
		return nil, common.Validation("A carousel needs at least one media item")
	}

	var memory models.MemoryRecord
	if err := tx.Where("id = ?", memoryID).Limit(1).Find(&memory).Error; err != nil {
		return nil, err
	}
	if memory.ID == "" {
		return nil, common.NotFound("memory not found")
	}
	if memory.Kind == nil || *memory.Kind != string(models.KindCarousel) {
		return nil, common.Validation("Only carousels have media items")
	}

	ids := make([]string, len(items))
	for i := range items {
		items[i].MemoryID = memoryID
		items[i].Order = i
		ids[i] = items[i].ID
	}
	var taken int64
	if err := tx.Model(&models.MediaItem{}).
		Where("id IN ? AND memory_id <> ?", ids, memoryID).
		Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, common.Validation("A media item belongs to another memory")
	}

	if err := tx.Where("memory_id = ?", memoryID).Delete(&models.MediaItem{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&items).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&memory).Update("updated_at", time.Now().UTC()).Error; err != nil {
		return nil, err
	}
	return Row{"count": len(items)}, nil
}

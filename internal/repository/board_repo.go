package repository

import (
	"context"
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arnold/memories-api/internal/cache"
	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/mapper"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

const (
	codeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Attempts at finding an unused access/share code pair.
	maxCodeAttempts = 3
)

var shareCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// GenerateCode returns a random 6 character uppercase alphanumeric code.
func GenerateCode() (string, error) {
	size := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, codeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// NormalizeShareCode trims and uppercases a user-entered share code.
func NormalizeShareCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type BoardRepository struct {
	store store.Store
	cache cache.Service
	opts  BoardOptions
	codes func() (string, error)
	log   zerolog.Logger
}

func NewBoardRepository(s store.Store, c cache.Service, opts BoardOptions) *BoardRepository {
	if c == nil {
		c = cache.NewService(nil)
	}
	return &BoardRepository{
		store: s,
		cache: c,
		opts:  opts,
		codes: GenerateCode,
		log:   logger.Component("boards"),
	}
}

// ListForUser returns every board the user owns or belongs to, newest first.
func (r *BoardRepository) ListForUser(ctx context.Context, userID string) ([]models.Board, error) {
	if userID == "" {
		return nil, common.ErrNotAuthenticated
	}

	var cached []models.Board
	if err := r.cache.GetUserBoards(ctx, userID, &cached); err == nil {
		return cached, nil
	}

	ids, err := r.boardIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	boards := []models.Board{}
	if len(ids) > 0 {
		boards, err = r.load(ctx, store.In("id", ids))
		if err != nil {
			return nil, err
		}
	}

	if err := r.cache.SetUserBoards(ctx, userID, boards, r.opts.CacheTTL); err != nil {
		r.log.Debug().Err(err).Msg("board cache write failed")
	}
	return boards, nil
}

func (r *BoardRepository) boardIDsFor(ctx context.Context, userID string) ([]string, error) {
	memberships, err := r.selectRows(ctx, store.TableBoardMembers, store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
	})
	if err != nil {
		return nil, err
	}
	owned, err := r.selectRows(ctx, store.TableBoards, store.Query{
		Filters: []store.Filter{store.Eq("owner_id", userID)},
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, row := range memberships {
		add(mapper.String(row, "board_id"))
	}
	for _, row := range owned {
		add(mapper.String(row, "id"))
	}
	return ids, nil
}

// load reads boards matching filter together with their members.
func (r *BoardRepository) load(ctx context.Context, filter store.Filter) ([]models.Board, error) {
	rows, err := r.selectRows(ctx, store.TableBoards, store.Query{
		Filters: []store.Filter{filter},
		Order:   []store.Order{{Column: "created_at", Desc: true}, {Column: "id"}},
	})
	if err != nil || len(rows) == 0 {
		return []models.Board{}, err
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = mapper.String(row, "id")
	}
	memberRows, err := r.selectRows(ctx, store.TableBoardMembers, store.Query{
		Filters: []store.Filter{store.In("board_id", ids)},
		Order:   []store.Order{{Column: "joined_at"}},
	})
	if err != nil {
		return nil, err
	}
	members := map[string][]string{}
	for _, row := range memberRows {
		boardID := mapper.String(row, "board_id")
		members[boardID] = append(members[boardID], mapper.String(row, "user_id"))
	}

	boards := make([]models.Board, len(rows))
	for i, row := range rows {
		boards[i] = mapper.ToBoard(row, members[ids[i]])
	}
	return boards, nil
}

func (r *BoardRepository) selectRows(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	return retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, table, q)
	})
}

// Get returns one board with its members.
func (r *BoardRepository) Get(ctx context.Context, boardID string) (models.Board, error) {
	if boardID == "" {
		return models.Board{}, common.Validation("A board id is required")
	}
	boards, err := r.load(ctx, store.Eq("id", boardID))
	if err != nil {
		return models.Board{}, err
	}
	if len(boards) == 0 {
		return models.Board{}, common.NotFound("board not found")
	}
	return boards[0], nil
}

// Create makes a board owned by ownerID with fresh access and share codes,
// in a single procedure call.
func (r *BoardRepository) Create(ctx context.Context, name, ownerID string) (models.Board, error) {
	if ownerID == "" {
		return models.Board{}, common.ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Board{}, common.Validation("Board name cannot be empty")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		accessCode, err := r.codes()
		if err != nil {
			return models.Board{}, common.Wrap(err, common.TypeUnknown, "generate access code")
		}
		shareCode, err := r.codes()
		if err != nil {
			return models.Board{}, common.Wrap(err, common.TypeUnknown, "generate share code")
		}

		out, err := retry.Do(ctx, retry.Once("board_create"), func(ctx context.Context) (store.Row, error) {
			return r.store.Call(ctx, store.ProcCreateBoardWithOwner, store.Row{
				"name":        name,
				"owner_id":    ownerID,
				"access_code": accessCode,
				"share_code":  shareCode,
			})
		})
		if err != nil {
			return models.Board{}, err
		}
		if mapper.Bool(out, "conflict") {
			r.log.Info().Int("attempt", attempt).Msg("board code collision, regenerating")
			continue
		}

		r.invalidate(ctx, ownerID)
		return r.Get(ctx, mapper.String(out, "board_id"))
	}
	return models.Board{}, common.New(common.TypeUnknown, "could not allocate unique board codes")
}

// JoinByShareCode adds userID to the board behind code. Joining a board
// twice succeeds without adding a second membership.
func (r *BoardRepository) JoinByShareCode(ctx context.Context, code, userID string) (models.JoinResult, error) {
	if userID == "" {
		return models.JoinResult{}, common.ErrNotAuthenticated
	}
	code = NormalizeShareCode(code)
	if !shareCodePattern.MatchString(code) {
		return models.JoinResult{}, common.Validation("Share codes are 6 letters or digits")
	}

	out, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) (store.Row, error) {
		return r.store.Call(ctx, store.ProcAddMemberByShareCode, store.Row{
			"share_code": code,
			"user_id":    userID,
		})
	})
	if err != nil {
		return models.JoinResult{}, err
	}

	result := models.JoinResult{
		Success: mapper.Bool(out, "success"),
		Message: mapper.String(out, "message"),
	}
	if !result.Success {
		return result, nil
	}

	board, err := r.Get(ctx, mapper.String(out, "board_id"))
	if err != nil {
		r.log.Warn().Err(err).Msg("joined board but could not reload it")
		r.invalidate(ctx, userID)
		return result, nil
	}
	result.Board = &board
	r.invalidate(ctx, board.MemberIDs...)
	return result, nil
}

// Rename changes a board's name. Only members may rename; the check happens
// inside the procedure.
func (r *BoardRepository) Rename(ctx context.Context, boardID, newName, userID string) (models.RenameResult, error) {
	if userID == "" {
		return models.RenameResult{}, common.ErrNotAuthenticated
	}
	newName = strings.TrimSpace(newName)
	if boardID == "" || newName == "" {
		return models.RenameResult{}, common.Validation("Board name cannot be empty")
	}

	out, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) (store.Row, error) {
		return r.store.Call(ctx, store.ProcRenameBoard, store.Row{
			"board_id": boardID,
			"user_id":  userID,
			"name":     newName,
		})
	})
	if err != nil {
		return models.RenameResult{}, err
	}

	result := models.RenameResult{
		Success: mapper.Bool(out, "success"),
		Message: mapper.String(out, "message"),
		NewName: mapper.OptString(out, "new_name"),
	}
	if result.Success {
		r.invalidateBoard(ctx, boardID)
	}
	return result, nil
}

// RemoveMember takes userID off the board. When the last member leaves the
// board and its memories are deleted.
func (r *BoardRepository) RemoveMember(ctx context.Context, boardID, userID string) (models.RemoveMemberResult, error) {
	if userID == "" {
		return models.RemoveMemberResult{}, common.ErrNotAuthenticated
	}
	if boardID == "" {
		return models.RemoveMemberResult{}, common.Validation("A board id is required")
	}

	affected := r.memberIDs(ctx, boardID)

	out, err := retry.Do(ctx, retry.Once("board_remove_member"), func(ctx context.Context) (store.Row, error) {
		return r.store.Call(ctx, store.ProcRemoveMember, store.Row{
			"board_id": boardID,
			"user_id":  userID,
		})
	})
	if err != nil {
		return models.RemoveMemberResult{}, err
	}
	if !mapper.Bool(out, "removed") {
		return models.RemoveMemberResult{Message: "You're not a member of this board"}, nil
	}

	r.invalidate(ctx, append(affected, userID)...)
	result := models.RemoveMemberResult{
		Success:      true,
		Message:      "You left the board",
		BoardDeleted: mapper.Bool(out, "board_deleted"),
	}
	if result.BoardDeleted {
		result.Message = "You left the board. It had no other members and was deleted."
	}
	return result, nil
}

// AccessCodes returns the distinct access codes of boards, in order.
func AccessCodes(boards []models.Board) []string {
	seen := make(map[string]bool, len(boards))
	codes := make([]string, 0, len(boards))
	for _, b := range boards {
		if b.AccessCode == "" || seen[b.AccessCode] {
			continue
		}
		seen[b.AccessCode] = true
		codes = append(codes, b.AccessCode)
	}
	return codes
}

func (r *BoardRepository) memberIDs(ctx context.Context, boardID string) []string {
	rows, err := r.store.Select(ctx, store.TableBoardMembers, store.Query{
		Filters: []store.Filter{store.Eq("board_id", boardID)},
	})
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, mapper.String(row, "user_id"))
	}
	return ids
}

func (r *BoardRepository) invalidateBoard(ctx context.Context, boardID string) {
	r.invalidate(ctx, r.memberIDs(ctx, boardID)...)
}

// invalidate drops cached board lists. Cache failures only cost freshness
// until the TTL runs out.
func (r *BoardRepository) invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	if err := r.cache.InvalidateUserBoards(ctx, userIDs...); err != nil {
		r.log.Debug().Err(err).Msg("board cache invalidation failed")
	}
}

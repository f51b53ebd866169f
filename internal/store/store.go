// Package store is the boundary to the remote persistent store. Callers see
// tables and named procedures only; rows are untyped and normalized by the
// mapper package.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Row is one record as returned by the store. Value types depend on the
// backing driver.
type Row map[string]any

const (
	TableMemories     = "memories"
	TableMediaItems   = "memory_media"
	TableBoards       = "boards"
	TableBoardMembers = "board_members"
	TableLikes        = "memory_likes"
	TableDrafts       = "drafts"
)

// Named atomic procedures.
const (
	ProcCreateBoardWithOwner = "create_board_with_owner"
	ProcRenameBoard          = "rename_board"
	ProcAddMemberByShareCode = "add_member_by_share_code"
	ProcRemoveMember         = "remove_member"
	ProcToggleLike           = "toggle_like"
	ProcLikeSummary          = "like_summary"
	ProcReplaceMedia         = "replace_media"
)

type Op string

const (
	OpEq Op = "="
	OpIn Op = "IN"
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }
func In(column string, value any) Filter { return Filter{Column: column, Op: OpIn, Value: value} }

type Order struct {
	Column string
	Desc   bool
}

type Query struct {
	Filters []Filter
	Order   []Order
	Limit   int
}

// Store is the remote store contract. Every method is a suspension point.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	// Insert adds rows. A row whose key is already taken is skipped and the
	// existing row is left as it was, so a repeated insert is a no-op.
	// Callers that need to know who owns a key read it back.
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	// Upsert inserts rows, updating every non-conflict column when a row with
	// the same conflict columns exists. Safe to retry.
	Upsert(ctx context.Context, table string, conflict []string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table string, filters []Filter, values Row) ([]Row, error)
	// Delete removes matching rows and returns them.
	Delete(ctx context.Context, table string, filters []Filter) ([]Row, error)
	Call(ctx context.Context, procedure string, args Row) (Row, error)
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("store: invalid identifier %q", name)
	}
	return nil
}

// whereClause renders filters as SQL with placeholders. Identifiers are
// validated, values are always bound.
func whereClause(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if err := checkIdent(f.Column); err != nil {
			return "", nil, err
		}
		switch f.Op {
		case OpEq, "":
			if f.Value == nil {
				parts = append(parts, f.Column+" IS NULL")
				continue
			}
			parts = append(parts, f.Column+" = ?")
		case OpIn:
			parts = append(parts, f.Column+" IN ?")
		default:
			return "", nil, fmt.Errorf("store: unsupported operator %q", f.Op)
		}
		args = append(args, f.Value)
	}
	return strings.Join(parts, " AND "), args, nil
}

package drafts

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/mapper"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

// Remote reads and writes a user's drafts in the drafts table. Each row holds
// the whole draft as JSON so a remote copy always replaces a local one
// wholesale.
type Remote struct {
	store store.Store
	read  retry.Executor
	write retry.Executor
}

func NewRemote(s store.Store) *Remote {
	return &Remote{
		store: s,
		read:  retry.Executor{Name: "draft_read", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
		write: retry.Executor{Name: "draft_write", MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
	}
}

// WithRetry replaces the read and write retry budgets.
func (r *Remote) WithRetry(read, write retry.Executor) *Remote {
	r.read, r.write = read, write
	return r
}

// Upsert stores d for userID. Safe to repeat. Another user's draft with the
// same id is a different row and is never touched.
func (r *Remote) Upsert(ctx context.Context, userID string, d models.Draft) error {
	if userID == "" {
		return common.ErrNotAuthenticated
	}
	if d.ID == "" {
		return common.Validation("A draft id is required")
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return common.Wrap(err, common.TypeUnknown, "encode draft")
	}

	row := store.Row{
		"id":           d.ID,
		"user_id":      userID,
		"board_id":     nil,
		"payload":      string(payload),
		"last_updated": d.LastUpdated.UTC(),
	}
	if d.BoardID != nil {
		row["board_id"] = *d.BoardID
	}

	_, err = retry.Do(ctx, r.write, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Upsert(ctx, store.TableDrafts, []string{"user_id", "id"}, row)
	})
	return err
}

// Get returns the remote copy of a draft; found is false when there is none.
func (r *Remote) Get(ctx context.Context, userID, id string) (draft models.Draft, found bool, err error) {
	rows, err := r.selectDrafts(ctx, store.Query{
		Filters: []store.Filter{store.Eq("id", id), store.Eq("user_id", userID)},
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		return models.Draft{}, false, err
	}
	draft, err = decode(rows[0])
	if err != nil {
		return models.Draft{}, false, err
	}
	return draft, true, nil
}

// List returns userID's drafts, most recently updated first. Rows that fail
// to decode are skipped.
func (r *Remote) List(ctx context.Context, userID string) ([]models.Draft, error) {
	rows, err := r.selectDrafts(ctx, store.Query{
		Filters: []store.Filter{store.Eq("user_id", userID)},
		Order:   []store.Order{{Column: "last_updated", Desc: true}},
	})
	if err != nil {
		return nil, err
	}
	drafts := make([]models.Draft, 0, len(rows))
	for _, row := range rows {
		d, err := decode(row)
		if err != nil {
			continue
		}
		drafts = append(drafts, d)
	}
	sortDrafts(drafts)
	return drafts, nil
}

// Delete removes userID's draft. Deleting a missing draft is not an error.
func (r *Remote) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return common.ErrNotAuthenticated
	}
	_, err := retry.Do(ctx, r.write, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Delete(ctx, store.TableDrafts, []store.Filter{
			store.Eq("id", id),
			store.Eq("user_id", userID),
		})
	})
	return err
}

func (r *Remote) selectDrafts(ctx context.Context, q store.Query) ([]store.Row, error) {
	return retry.Do(ctx, r.read, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableDrafts, q)
	})
}

func decode(row store.Row) (models.Draft, error) {
	var d models.Draft
	if err := json.Unmarshal([]byte(mapper.String(row, "payload")), &d); err != nil {
		return models.Draft{}, common.Wrap(err, common.TypeUnknown, "decode draft")
	}
	if d.ID == "" {
		d.ID = mapper.String(row, "id")
	}
	return d, nil
}

func sortDrafts(drafts []models.Draft) {
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].LastUpdated.After(drafts[j].LastUpdated)
	})
}

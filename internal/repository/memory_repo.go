package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arnold/memories-api/internal/common"
	"github.com/arnold/memories-api/internal/fanout"
	"github.com/arnold/memories-api/internal/likes"
	"github.com/arnold/memories-api/internal/logger"
	"github.com/arnold/memories-api/internal/mapper"
	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/retry"
	"github.com/arnold/memories-api/internal/store"
)

// ErrMediaItemsNotSaved is returned alongside a created carousel whose
// memory row was stored but whose media items were not. The memory is not
// rolled back; the items can be written again with ReplaceMedia.
var ErrMediaItemsNotSaved = errors.New("memory saved without its media items")

// Notifier is told about new memories. It runs detached from the request
// that created the memory.
type Notifier interface {
	MemoryCreated(ctx context.Context, memory models.Memory, authorID string) error
}

const notifyTimeout = 30 * time.Second

type MemoryRepository struct {
	store    store.Store
	likes    *likes.Resolver
	notifier Notifier
	opts     MemoryOptions
	log      zerolog.Logger
}

func NewMemoryRepository(s store.Store, resolver *likes.Resolver, opts MemoryOptions) *MemoryRepository {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultMemoryOptions().DefaultLimit
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultMemoryOptions().ChunkSize
	}
	return &MemoryRepository{
		store: s,
		likes: resolver,
		opts:  opts,
		log:   logger.Component("memories"),
	}
}

func (r *MemoryRepository) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *MemoryRepository) limit(limit int) int {
	if limit < 1 {
		return r.opts.DefaultLimit
	}
	return limit
}

// FetchByAccessCode returns the newest memories of one board.
func (r *MemoryRepository) FetchByAccessCode(ctx context.Context, code, viewerID string, limit int) ([]models.Memory, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, common.Validation("An access code is required")
	}
	limit = r.limit(limit)

	rows, err := retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableMemories, store.Query{
			Filters: []store.Filter{store.Eq("access_code", code)},
			Order:   newestFirst,
			Limit:   limit,
		})
	})
	if err != nil {
		return nil, err
	}

	memories := r.enrich(ctx, toMemories(rows), viewerID)
	if err := ctx.Err(); err != nil {
		return nil, common.Aborted(err)
	}
	return memories, nil
}

var newestFirst = []store.Order{{Column: "event_date", Desc: true}, {Column: "id"}}

// FetchByAccessCodes reads many boards at once. Codes are split into chunks
// that run concurrently; a chunk that keeps failing is dropped and the rest
// are still returned. The result is sorted newest first and truncated only
// after every chunk has been merged.
func (r *MemoryRepository) FetchByAccessCodes(ctx context.Context, codes []string, viewerID string, limit int) ([]models.Memory, error) {
	codes = uniqueCodes(codes)
	if len(codes) == 0 {
		return []models.Memory{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, common.Aborted(err)
	}
	limit = r.limit(limit)

	merged := fanout.Run(ctx, codes, r.opts.ChunkSize, func(ctx context.Context, chunk []string) ([]models.Memory, error) {
		// Each chunk may return up to limit rows; the overall newest limit
		// rows are always contained in the union.
		rows, err := retry.Do(ctx, r.opts.ChunkRetry, func(ctx context.Context) ([]store.Row, error) {
			return r.store.Select(ctx, store.TableMemories, store.Query{
				Filters: []store.Filter{store.In("access_code", chunk)},
				Order:   newestFirst,
				Limit:   limit,
			})
		})
		if err != nil {
			return nil, err
		}
		return toMemories(rows), nil
	})

	memories := SortNewestFirst(dedupeByID(merged))
	if len(memories) > limit {
		memories = memories[:limit]
	}
	memories = r.enrich(ctx, memories, viewerID)

	if err := ctx.Err(); err != nil {
		return nil, common.Aborted(err)
	}
	return memories, nil
}

// Get returns one memory by id.
func (r *MemoryRepository) Get(ctx context.Context, id, viewerID string) (models.Memory, error) {
	if id == "" {
		return models.Memory{}, common.Validation("A memory id is required")
	}
	rows, err := retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableMemories, store.Query{
			Filters: []store.Filter{store.Eq("id", id)},
			Limit:   1,
		})
	})
	if err != nil {
		return models.Memory{}, err
	}
	if len(rows) == 0 {
		return models.Memory{}, common.NotFound("memory not found")
	}
	return r.enrich(ctx, toMemories(rows), viewerID)[0], nil
}

// Create stores a new memory. A carousel is written in two steps, the
// memory row then its media items; when the second step fails the memory is
// returned together with ErrMediaItemsNotSaved.
func (r *MemoryRepository) Create(ctx context.Context, viewerID string, in models.NewMemory) (models.Memory, error) {
	if viewerID == "" {
		return models.Memory{}, common.ErrNotAuthenticated
	}
	in.AccessCode = strings.TrimSpace(in.AccessCode)
	if err := in.Validate(); err != nil {
		return models.Memory{}, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	var items []models.MediaItem
	if in.Kind == models.KindCarousel {
		items = buildMediaItems(in.ID, in.MediaItems)
		if err := r.checkMediaOwner(ctx, in.ID, items); err != nil {
			return models.Memory{}, err
		}
	}

	now := time.Now().UTC()
	row := store.Row{
		"id":          in.ID,
		"kind":        string(in.Kind),
		"caption":     nullable(in.Caption),
		"event_date":  in.EventDate.UTC(),
		"location":    nullable(in.Location),
		"access_code": in.AccessCode,
		"created_by":  viewerID,
		"media_url":   nullable(in.PrimaryMediaURL),
		"is_video":    in.Kind == models.KindVideo,
		"like_count":  0,
		"created_at":  now,
		"updated_at":  now,
	}
	if in.Kind == models.KindNote || in.Kind == models.KindCarousel {
		row["media_url"] = nil
	}

	if err := r.insert(ctx, store.TableMemories, row); err != nil {
		return models.Memory{}, err
	}
	memory, err := r.ownMemory(ctx, in.ID, in.AccessCode, viewerID)
	if err != nil {
		return models.Memory{}, err
	}

	var mediaErr error
	if in.Kind == models.KindCarousel {
		if err := r.insert(ctx, store.TableMediaItems, mediaRows(items)...); err != nil {
			r.log.Error().
				Str("memory_id", in.ID).
				Int("items", len(items)).
				Err(err).
				Msg("memory saved but media items failed")
			mediaErr = fmt.Errorf("%w: %w", ErrMediaItemsNotSaved, err)
		} else {
			memory = mapper.AttachMedia(memory, items)
		}
	}

	r.notifyCreated(memory, viewerID)
	return memory, mediaErr
}

func (r *MemoryRepository) insert(ctx context.Context, table string, rows ...store.Row) error {
	_, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Insert(ctx, table, rows...)
	})
	return err
}

// ownMemory reads back a just-inserted memory. An id already used on another
// board or by another author is refused and the existing row is untouched.
func (r *MemoryRepository) ownMemory(ctx context.Context, id, accessCode, viewerID string) (models.Memory, error) {
	rows, err := retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableMemories, store.Query{
			Filters: []store.Filter{store.Eq("id", id)},
			Limit:   1,
		})
	})
	if err != nil {
		return models.Memory{}, err
	}
	if len(rows) == 0 {
		return models.Memory{}, common.New(common.TypeUnknown, "memory missing after insert")
	}
	memory := mapper.ToMemory(rows[0])
	if memory.AccessCode != accessCode || memory.CreatedBy == nil || *memory.CreatedBy != viewerID {
		return models.Memory{}, common.Validation("A memory with this id already exists")
	}
	return memory, nil
}

// checkMediaOwner refuses item ids that already belong to another memory.
func (r *MemoryRepository) checkMediaOwner(ctx context.Context, memoryID string, items []models.MediaItem) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	rows, err := retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableMediaItems, store.Query{
			Filters: []store.Filter{store.In("id", ids)},
		})
	})
	if err != nil {
		return err
	}
	for _, item := range mapper.ToMediaItems(rows) {
		if item.MemoryID != memoryID {
			return common.Validation("A media item belongs to another memory")
		}
	}
	return nil
}

// notifyCreated runs the notifier without waiting for it. Failures and
// panics are logged and never reach the caller.
func (r *MemoryRepository) notifyCreated(memory models.Memory, authorID string) {
	if r.notifier == nil {
		return
	}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.log.Error().Interface("panic", p).Str("memory_id", memory.ID).Msg("notifier panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := r.notifier.MemoryCreated(ctx, memory, authorID); err != nil {
			r.log.Warn().Str("memory_id", memory.ID).Err(err).Msg("memory notification failed")
		}
	}()
}

// Update applies a partial update. Only fields present in the patch are
// written; fields present as null are cleared.
func (r *MemoryRepository) Update(ctx context.Context, viewerID, id string, patch models.MemoryPatch) (models.Memory, error) {
	if viewerID == "" {
		return models.Memory{}, common.ErrNotAuthenticated
	}
	if id == "" {
		return models.Memory{}, common.Validation("A memory id is required")
	}
	values, err := patch.Values()
	if err != nil {
		return models.Memory{}, err
	}
	values["updated_at"] = time.Now().UTC()

	rows, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Update(ctx, store.TableMemories, []store.Filter{store.Eq("id", id)}, values)
	})
	if err != nil {
		return models.Memory{}, err
	}
	if len(rows) == 0 {
		return models.Memory{}, common.NotFound("memory not found")
	}
	return r.enrich(ctx, toMemories(rows), viewerID)[0], nil
}

// Delete removes a memory only when both id and access code match, and
// returns what was deleted. A wrong access code is reported as not found.
func (r *MemoryRepository) Delete(ctx context.Context, viewerID, id, accessCode string) (models.Memory, error) {
	if viewerID == "" {
		return models.Memory{}, common.ErrNotAuthenticated
	}
	accessCode = strings.TrimSpace(accessCode)
	if id == "" || accessCode == "" {
		return models.Memory{}, common.Validation("A memory id and access code are required")
	}

	rows, err := retry.Do(ctx, retry.Once("memory_delete"), func(ctx context.Context) ([]store.Row, error) {
		return r.store.Delete(ctx, store.TableMemories, []store.Filter{
			store.Eq("id", id),
			store.Eq("access_code", accessCode),
		})
	})
	if err != nil {
		return models.Memory{}, err
	}
	if len(rows) == 0 {
		return models.Memory{}, common.NotFound("memory not found")
	}
	memory := mapper.ToMemory(rows[0])

	byMemory := []store.Filter{store.Eq("memory_id", id)}
	media, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Delete(ctx, store.TableMediaItems, byMemory)
	})
	if err != nil {
		r.log.Warn().Str("memory_id", id).Err(err).Msg("orphaned media items after delete")
	}
	if _, err := retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Delete(ctx, store.TableLikes, byMemory)
	}); err != nil {
		r.log.Warn().Str("memory_id", id).Err(err).Msg("orphaned likes after delete")
	}

	return mapper.AttachMedia(memory, mapper.ToMediaItems(media)), nil
}

func (r *MemoryRepository) ToggleLike(ctx context.Context, id, viewerID string) (models.LikeState, error) {
	return r.likes.Toggle(ctx, id, viewerID)
}

// ReplaceMedia rewrites a carousel's items in the given order. The old set
// is swapped for the new one atomically, so orders stay contiguous from 0
// and a failed write leaves the old items in place.
func (r *MemoryRepository) ReplaceMedia(ctx context.Context, viewerID, memoryID string, items []models.NewMediaItem) (models.Memory, error) {
	if viewerID == "" {
		return models.Memory{}, common.ErrNotAuthenticated
	}
	if len(items) == 0 {
		return models.Memory{}, common.Validation("A carousel needs at least one media item")
	}
	for _, item := range items {
		if strings.TrimSpace(item.URL) == "" {
			return models.Memory{}, common.Validation("Every media item needs a URL")
		}
	}

	memory, err := r.Get(ctx, memoryID, viewerID)
	if err != nil {
		return models.Memory{}, err
	}
	if memory.Kind != models.KindCarousel {
		return models.Memory{}, common.Validation("Only carousels have media items")
	}

	args := store.Row{"memory_id": memoryID, "items": buildMediaItems(memoryID, items)}
	_, err = retry.Do(ctx, r.opts.WriteRetry, func(ctx context.Context) (store.Row, error) {
		return r.store.Call(ctx, store.ProcReplaceMedia, args)
	})
	if err != nil {
		return models.Memory{}, err
	}
	return r.Get(ctx, memoryID, viewerID)
}

// enrich fills in like state and carousel media. Both lookups degrade: a
// failure leaves default like state or an empty item list.
func (r *MemoryRepository) enrich(ctx context.Context, memories []models.Memory, viewerID string) []models.Memory {
	if len(memories) == 0 {
		return memories
	}

	ids := make([]string, len(memories))
	var carouselIDs []string
	for i, m := range memories {
		ids[i] = m.ID
		if m.Kind == models.KindCarousel {
			carouselIDs = append(carouselIDs, m.ID)
		}
	}

	var (
		states map[string]models.LikeState
		media  map[string][]models.MediaItem
	)
	var g errgroup.Group
	g.Go(func() error {
		states = r.likes.ResolveAll(ctx, ids, viewerID)
		return nil
	})
	g.Go(func() error {
		media = r.mediaFor(ctx, carouselIDs)
		return nil
	})
	_ = g.Wait()

	out := make([]models.Memory, len(memories))
	for i, m := range memories {
		state := states[m.ID]
		m.LikeCount = state.Count
		m.ViewerHasLiked = state.ViewerHasLiked
		out[i] = mapper.AttachMedia(m, media[m.ID])
	}
	return out
}

func (r *MemoryRepository) mediaFor(ctx context.Context, memoryIDs []string) map[string][]models.MediaItem {
	grouped := make(map[string][]models.MediaItem, len(memoryIDs))
	if len(memoryIDs) == 0 {
		return grouped
	}

	rows, err := retry.Do(ctx, r.opts.ReadRetry, func(ctx context.Context) ([]store.Row, error) {
		return r.store.Select(ctx, store.TableMediaItems, store.Query{
			Filters: []store.Filter{store.In("memory_id", memoryIDs)},
			Order:   []store.Order{{Column: "memory_id"}, {Column: "sort_order"}},
		})
	})
	if err != nil {
		if !common.IsAborted(err) {
			r.log.Warn().Int("memories", len(memoryIDs)).Err(err).Msg("media items unavailable")
		}
		return grouped
	}
	for _, item := range mapper.ToMediaItems(rows) {
		grouped[item.MemoryID] = append(grouped[item.MemoryID], item)
	}
	return grouped
}

// SortNewestFirst orders memories by event date descending, ties broken by
// id so the order is deterministic.
func SortNewestFirst(memories []models.Memory) []models.Memory {
	sort.SliceStable(memories, func(i, j int) bool {
		a, b := memories[i], memories[j]
		if !a.EventDate.Equal(b.EventDate) {
			return a.EventDate.After(b.EventDate)
		}
		return a.ID < b.ID
	})
	return memories
}

func toMemories(rows []store.Row) []models.Memory {
	out := make([]models.Memory, len(rows))
	for i, row := range rows {
		out[i] = mapper.ToMemory(row)
	}
	return out
}

func dedupeByID(memories []models.Memory) []models.Memory {
	seen := make(map[string]bool, len(memories))
	out := make([]models.Memory, 0, len(memories))
	for _, m := range memories {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func buildMediaItems(memoryID string, in []models.NewMediaItem) []models.MediaItem {
	items := make([]models.MediaItem, len(in))
	for i, item := range in {
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		items[i] = models.MediaItem{
			ID:       id,
			MemoryID: memoryID,
			URL:      strings.TrimSpace(item.URL),
			IsVideo:  item.IsVideo,
			Order:    i,
		}
	}
	return items
}

func mediaRows(items []models.MediaItem) []store.Row {
	rows := make([]store.Row, len(items))
	for i, item := range items {
		rows[i] = store.Row{
			"id":         item.ID,
			"memory_id":  item.MemoryID,
			"url":        item.URL,
			"is_video":   item.IsVideo,
			"sort_order": item.Order,
		}
	}
	return rows
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

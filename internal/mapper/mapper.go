// Package mapper turns raw store rows into domain values. Every function is
// pure and total: missing or oddly typed columns fall back to zero values
// instead of failing, so legacy rows and driver differences stay here.
package mapper

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arnold/memories-api/internal/models"
	"github.com/arnold/memories-api/internal/store"
)

// ToMemory maps a memories row. ViewerHasLiked is always false here; like
// state is resolved separately.
func ToMemory(row store.Row) models.Memory {
	m := models.Memory{
		ID:         String(row, "id"),
		Kind:       resolveKind(row),
		Caption:    OptString(row, "caption"),
		Location:   OptString(row, "location"),
		AccessCode: String(row, "access_code"),
		CreatedBy:  OptString(row, "created_by"),
		LikeCount:  clamp(Int(row, "like_count")),
	}

	m.CreatedAt, _ = Time(row, "created_at")
	if date, ok := Time(row, "event_date"); ok {
		m.EventDate = date
	} else {
		m.EventDate = m.CreatedAt
	}

	if m.Kind == models.KindPhoto || m.Kind == models.KindVideo {
		m.PrimaryMediaURL = OptString(row, "media_url", "image_url")
	}
	return m
}

func resolveKind(row store.Row) models.MemoryKind {
	if k := models.MemoryKind(strings.ToLower(String(row, "kind"))); k.Valid() {
		return k
	}
	if Bool(row, "is_video") {
		return models.KindVideo
	}
	return models.KindPhoto
}

func ToMediaItem(row store.Row) models.MediaItem {
	order := Int(row, "sort_order")
	if _, ok := row["sort_order"]; !ok {
		order = Int(row, "order")
	}
	return models.MediaItem{
		ID:       String(row, "id"),
		MemoryID: String(row, "memory_id"),
		URL:      String(row, "url", "media_url"),
		IsVideo:  Bool(row, "is_video"),
		Order:    order,
	}
}

// ToMediaItems maps and sorts rows by order.
func ToMediaItems(rows []store.Row) []models.MediaItem {
	items := make([]models.MediaItem, len(rows))
	for i, r := range rows {
		items[i] = ToMediaItem(r)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items
}

// AttachMedia sets a carousel's items and derives its primary URL from the
// first one. Other kinds are returned unchanged.
func AttachMedia(m models.Memory, items []models.MediaItem) models.Memory {
	if m.Kind != models.KindCarousel {
		return m
	}
	sorted := make([]models.MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	m.MediaItems = sorted
	m.PrimaryMediaURL = nil
	if len(sorted) > 0 {
		url := sorted[0].URL
		m.PrimaryMediaURL = &url
	}
	return m
}

func ToBoard(row store.Row, memberIDs []string) models.Board {
	b := models.Board{
		ID:         String(row, "id"),
		Name:       String(row, "name"),
		AccessCode: String(row, "access_code"),
		ShareCode:  strings.ToUpper(String(row, "share_code")),
		OwnerID:    String(row, "owner_id"),
		MemberIDs:  memberIDs,
	}
	b.CreatedAt, _ = Time(row, "created_at")
	if b.MemberIDs == nil {
		b.MemberIDs = []string{}
	}
	return b
}

// ToLikeState reads the result of a like procedure. The count key may be
// "count" or "like_count".
func ToLikeState(row store.Row) models.LikeState {
	count := Int(row, "count")
	if _, ok := row["count"]; !ok {
		count = Int(row, "like_count")
	}
	return models.LikeState{
		Count:          clamp(count),
		ViewerHasLiked: Bool(row, "viewer_has_liked"),
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// String returns the first present, non-null key as a string.
func String(row store.Row, keys ...string) string {
	if s := OptString(row, keys...); s != nil {
		return *s
	}
	return ""
}

// OptString is String returning nil when no key holds a value.
func OptString(row store.Row, keys ...string) *string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			return &v
		case []byte:
			s := string(v)
			return &s
		case *string:
			if v != nil {
				return v
			}
		}
	}
	return nil
}

func Bool(row store.Row, key string) bool {
	switch v := row[key].(type) {
	case bool:
		return v
	case *bool:
		return v != nil && *v
	case int64:
		return v != 0
	case int:
		return v != 0
	case int32:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case []byte:
		b, err := strconv.ParseBool(strings.TrimSpace(string(v)))
		return err == nil && b
	}
	return false
}

func Int(row store.Row, key string) int {
	switch v := row[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case uint32:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	case []byte:
		n, err := strconv.Atoi(strings.TrimSpace(string(v)))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Time parses time.Time values and the string layouts written by postgres,
// sqlite and JSON clients. The result is in UTC.
func Time(row store.Row, key string) (time.Time, bool) {
	switch v := row[key].(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

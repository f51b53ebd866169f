package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arnold/memories-api/internal/common"
)

func strPtr(s string) *string { return &s }

func TestNewMemory_Validate(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		memory  NewMemory
		wantErr bool
	}{
		{"photo with url", NewMemory{Kind: KindPhoto, AccessCode: "AAA", EventDate: date, PrimaryMediaURL: strPtr("https://x/1.jpg")}, false},
		{"photo without url", NewMemory{Kind: KindPhoto, AccessCode: "AAA", EventDate: date}, true},
		{"note", NewMemory{Kind: KindNote, AccessCode: "AAA", EventDate: date, Caption: strPtr("hi")}, false},
		{"note with media", NewMemory{Kind: KindNote, AccessCode: "AAA", EventDate: date, PrimaryMediaURL: strPtr("u")}, true},
		{"carousel", NewMemory{Kind: KindCarousel, AccessCode: "AAA", EventDate: date, MediaItems: []NewMediaItem{{URL: "u1"}}}, false},
		{"empty carousel", NewMemory{Kind: KindCarousel, AccessCode: "AAA", EventDate: date}, true},
		{"missing access code", NewMemory{Kind: KindNote, EventDate: date}, true},
		{"unknown kind", NewMemory{Kind: "gif", AccessCode: "AAA", EventDate: date}, true},
		{"missing date", NewMemory{Kind: KindNote, AccessCode: "AAA"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.memory.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryPatch_DistinguishesAbsentFromNull(t *testing.T) {
	var patch MemoryPatch
	require.NoError(t, json.Unmarshal([]byte(`{"caption": null, "location": "Lisbon"}`), &patch))

	values, err := patch.Values()
	require.NoError(t, err)

	assert.Contains(t, values, "caption")
	assert.Nil(t, values["caption"])
	assert.Equal(t, "Lisbon", values["location"])
	assert.NotContains(t, values, "event_date")
}

func TestMemoryPatch_EmptyIsInvalid(t *testing.T) {
	_, err := MemoryPatch{}.Values()
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestMemoryPatch_CannotClearEventDate(t *testing.T) {
	_, err := MemoryPatch{EventDate: Null[time.Time]()}.Values()
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestBoard_HasMember(t *testing.T) {
	b := Board{OwnerID: "owner", MemberIDs: []string{"owner", "u2"}}

	assert.True(t, b.HasMember("owner"))
	assert.True(t, b.HasMember("u2"))
	assert.False(t, b.HasMember("u3"))
	assert.False(t, b.HasMember(""))
}

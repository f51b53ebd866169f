package common

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"canceled", context.Canceled, TypeAborted},
		{"wrapped canceled", fmt.Errorf("query: %w", context.Canceled), TypeAborted},
		{"deadline", context.DeadlineExceeded, TypeRemoteUnavailable},
		{"bad conn", driver.ErrBadConn, TypeRemoteUnavailable},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), TypeRemoteUnavailable},
		{"record not found", gorm.ErrRecordNotFound, TypeNotFound},
		{"plain", errors.New("permission denied for table memories"), TypeUnknown},
		{"already classified", Validation("caption too long"), TypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Type)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestAppError_IsMatchesByType(t *testing.T) {
	err := fmt.Errorf("delete: %w", NotFound("memory m1 not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(syscall.ECONNREFUSED))
	assert.False(t, IsRetryable(errors.New("duplicate key")))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestGetUserMessage_IsActionable(t *testing.T) {
	err := Wrap(errors.New("dial tcp 10.0.0.1:5432: i/o timeout"), TypeRemoteUnavailable, "remote store unavailable")

	msg := err.GetUserMessage()
	assert.Contains(t, msg, "Check your connection")
	assert.NotContains(t, msg, "10.0.0.1")
}

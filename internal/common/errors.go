package common

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"gorm.io/gorm"
)

// ErrorType categorizes failures so callers can decide how to react
// without inspecting backend error strings.
type ErrorType string

const (
	TypeNotFound          ErrorType = "not_found"
	TypeNotAuthenticated  ErrorType = "not_authenticated"
	TypeAborted           ErrorType = "aborted"
	TypeRemoteUnavailable ErrorType = "remote_unavailable"
	TypeValidation        ErrorType = "validation_failed"
	TypeUnknown           ErrorType = "unknown"
)

// AppError is the structured error returned by every repository operation.
type AppError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	UserMessage string    `json:"userMessage"`
	Err         error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError of the same type, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Type == e.Type
}

// GetUserMessage returns a message safe to show to an end user.
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return defaultUserMessages[e.Type]
}

var defaultUserMessages = map[ErrorType]string{
	TypeNotFound:          "We couldn't find that. It may have been removed.",
	TypeNotAuthenticated:  "Please sign in to continue.",
	TypeAborted:           "The request was cancelled.",
	TypeRemoteUnavailable: "We couldn't reach the server. Check your connection and try again.",
	TypeValidation:        "Some of the information you entered isn't valid.",
	TypeUnknown:           "Something went wrong. Please try again.",
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound          = &AppError{Type: TypeNotFound, Message: "resource not found"}
	ErrNotAuthenticated  = &AppError{Type: TypeNotAuthenticated, Message: "no signed-in user"}
	ErrAborted           = &AppError{Type: TypeAborted, Message: "operation cancelled"}
	ErrRemoteUnavailable = &AppError{Type: TypeRemoteUnavailable, Message: "remote store unavailable"}
	ErrValidation        = &AppError{Type: TypeValidation, Message: "validation failed"}
	ErrUnknown           = &AppError{Type: TypeUnknown, Message: "unknown error"}
)

func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

func Wrap(err error, t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

func NotFound(message string) *AppError   { return New(TypeNotFound, message) }
func Validation(message string) *AppError { return &AppError{Type: TypeValidation, Message: message, UserMessage: message} }
func Aborted(err error) *AppError         { return Wrap(err, TypeAborted, "operation cancelled") }

// Classify converts any error into an AppError. Errors that are already
// classified pass through untouched.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Aborted(err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(err, TypeNotFound, "record not found")
	case isTransient(err):
		return Wrap(err, TypeRemoteUnavailable, "remote store unavailable")
	default:
		return Wrap(err, TypeUnknown, "unexpected error")
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// TypeOf returns the classified type of err, or "" for nil.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	return Classify(err).Type
}

// IsRetryable reports whether err belongs to the transient class.
func IsRetryable(err error) bool {
	return TypeOf(err) == TypeRemoteUnavailable
}

func IsAborted(err error) bool {
	return TypeOf(err) == TypeAborted
}

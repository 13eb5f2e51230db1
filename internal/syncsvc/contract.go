// Package syncsvc defines the sync service contract the editing engine is
// built against, plus reference backends implementing it. All failure
// crossing this boundary is data: calls return tagged Result values and
// never panic or surface transport exceptions.
package syncsvc

import (
	"context"
	"fmt"

	"pairtask/engine/internal/collab"
)

// Error is the structured failure half of a Result.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Failure codes used by the reference backends.
const (
	CodeNoSession = "NO_SESSION"
	CodeLocked    = "LOCK_HELD"
	CodeNotOwner  = "NOT_LOCK_OWNER"
	CodeInvalid   = "INVALID_OPERATION"
	CodeTransport = "TRANSPORT"
)

// Result is a tagged success/failure value: either Value is meaningful or
// Err is set, never both.
type Result[T any] struct {
	Value T
	Err   *Error
}

// None is the value type for calls that succeed with no payload.
type None struct{}

func OK[T any](value T) Result[T] {
	return Result[T]{Value: value}
}

func Failure[T any](code, format string, args ...any) Result[T] {
	return Result[T]{Err: &Error{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Service is the backend contract consumed by the editing facade. The
// facade is the only engine component that calls it.
type Service interface {
	StartEditSession(ctx context.Context, taskID, userID string) Result[collab.EditSession]
	StopEditSession(ctx context.Context, taskID, userID string) Result[None]
	ApplyOperation(ctx context.Context, op collab.EditOperation) Result[bool]
	UpdateCursor(ctx context.Context, taskID, userID, field string, position int) Result[None]
	ToggleTaskLock(ctx context.Context, taskID, userID string, lock bool) Result[bool]

	// GetCollaborators is the snapshot read used by the presence poll
	// loop. An unknown task yields an empty slice.
	GetCollaborators(ctx context.Context, taskID string) []collab.CollaboratorCursor
}

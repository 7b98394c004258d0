package game

import (
	"errors"
	"fmt"
)

// Kind classifies request-scoped failures. None of them are fatal.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindUnauthorized
	KindCapacityExceeded
	KindPreconditionFailed
	KindNotAMember
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindPreconditionFailed:
		return "precondition_failed"
	case KindNotAMember:
		return "not_a_member"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a failure the caller caused. Its message is safe to send back
// to the client as is.
type Error struct {
	Kind    Kind
	message string
}

func (e *Error) Error() string {
	return e.message
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, message: message}
}

var (
	ErrRoomNotFound      = NewError(KindNotFound, "Room not found")
	ErrGameInProgress    = NewError(KindInvalidState, "Game already in progress")
	ErrRoomFull          = NewError(KindCapacityExceeded, "Room is full")
	ErrNotHost           = NewError(KindUnauthorized, "Only the host can do that")
	ErrNotEnoughPlayers  = NewError(KindPreconditionFailed, "Need at least 2 players to start")
	ErrColorLocked       = NewError(KindInvalidState, "Target color can only be changed while waiting")
	ErrGameNotInProgress = NewError(KindInvalidState, "Game not in progress")
	ErrPlayerNotFound    = NewError(KindNotAMember, "Player not found")
)

// KindOf returns the kind of err, or KindInternal if err did not come
// from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

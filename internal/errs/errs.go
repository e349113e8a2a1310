// Package errs defines the stable error codes returned to clients when a
// command is rejected.
package errs

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable rejection code.
type Code string

const (
	CodeInvalidCommand         Code = "invalid_command"
	CodeUnknownMap             Code = "unknown_map"
	CodeAlreadyQueued          Code = "already_queued"
	CodeNotQueued              Code = "not_queued"
	CodeNotAMember             Code = "not_a_member"
	CodeNotYourTurn            Code = "not_your_turn"
	CodeMapAlreadyBanned       Code = "map_already_banned"
	CodeDraftNotActive         Code = "draft_not_active"
	CodeDuplicateSession       Code = "duplicate_session"
	CodeUnauthenticated        Code = "unauthenticated"
	CodeForbidden              Code = "forbidden"
	CodeLobbyNotFound          Code = "lobby_not_found"
	CodeLobbyLocked            Code = "lobby_locked"
	CodeLobbyClosed            Code = "lobby_closed"
	CodePersistenceUnavailable Code = "persistence_unavailable"
	CodeDuplicateRecord        Code = "duplicate_record"
	CodeInternal               Code = "internal"
)

// Category groups codes by how the caller should react.
type Category int

const (
	Validation Category = iota
	Conflict
	Dependency
	Fatal
	Auth
	NotFound
)

func (c Category) String() string {
	switch c {
	case Validation:
		return "validation"
	case Conflict:
		return "conflict"
	case Dependency:
		return "dependency"
	case Fatal:
		return "fatal"
	case Auth:
		return "auth"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a rejection with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code, so wrapped sentinels and
// errors built with New compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an error with the given code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidCommand         = &Error{Code: CodeInvalidCommand, Message: "invalid command"}
	ErrUnknownMap             = &Error{Code: CodeUnknownMap, Message: "map is not in the pool"}
	ErrAlreadyQueued          = &Error{Code: CodeAlreadyQueued, Message: "already in queue or in an active lobby"}
	ErrNotQueued              = &Error{Code: CodeNotQueued, Message: "not in queue"}
	ErrNotAMember             = &Error{Code: CodeNotAMember, Message: "not a member of this lobby"}
	ErrNotYourTurn            = &Error{Code: CodeNotYourTurn, Message: "not your turn to ban"}
	ErrMapAlreadyBanned       = &Error{Code: CodeMapAlreadyBanned, Message: "map already banned"}
	ErrDraftNotActive         = &Error{Code: CodeDraftNotActive, Message: "map ban is not active"}
	ErrDuplicateSession       = &Error{Code: CodeDuplicateSession, Message: "player already connected elsewhere"}
	ErrUnauthenticated        = &Error{Code: CodeUnauthenticated, Message: "not logged in"}
	ErrForbidden              = &Error{Code: CodeForbidden, Message: "admin access required"}
	ErrLobbyNotFound          = &Error{Code: CodeLobbyNotFound, Message: "lobby not found"}
	ErrLobbyLocked            = &Error{Code: CodeLobbyLocked, Message: "lobby is finalizing"}
	ErrLobbyClosed            = &Error{Code: CodeLobbyClosed, Message: "lobby is closed"}
	ErrPersistenceUnavailable = &Error{Code: CodePersistenceUnavailable, Message: "match storage unavailable"}
	ErrDuplicateRecord        = &Error{Code: CodeDuplicateRecord, Message: "match record already exists"}
	ErrInternal               = &Error{Code: CodeInternal, Message: "internal error"}
)

// CategoryOf classifies a code.
func CategoryOf(code Code) Category {
	switch code {
	case CodeInvalidCommand, CodeUnknownMap:
		return Validation
	case CodeUnauthenticated, CodeForbidden:
		return Auth
	case CodeLobbyNotFound:
		return NotFound
	case CodePersistenceUnavailable:
		return Dependency
	case CodeInternal:
		return Fatal
	default:
		return Conflict
	}
}

// CodeOf extracts the code from err, falling back to CodeInternal for errors
// that did not originate here.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}

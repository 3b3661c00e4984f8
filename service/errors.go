package service

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; the HTTP layer maps each to a status.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrDuplicateVote  = errors.New("duplicate vote")
	ErrConflict       = errors.New("conflict")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrVotingClosed   = errors.New("voting closed")
)

// Error is a classified failure whose message is safe to show to clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

type DuplicateVoteError struct {
	UserName  string
	PollTitle string
}

func (e *DuplicateVoteError) Error() string {
	return fmt.Sprintf("%s has already voted on poll %q", e.UserName, e.PollTitle)
}

func (e *DuplicateVoteError) Is(target error) bool {
	return target == ErrDuplicateVote
}

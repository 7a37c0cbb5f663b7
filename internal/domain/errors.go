package domain

import (
	"errors"
	"fmt"
)

// Kind classifies errors that cross the service boundary.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindUnauthenticated Kind = "unauthenticated"
	KindDuplicateReview Kind = "duplicate_review"
	KindConflict        Kind = "conflict"
	KindInvalidCode     Kind = "invalid_code"
	KindDispatch        Kind = "dispatch_error"
	KindInternal        Kind = "internal"
)

// Error is a classified error. Field names the request field the error is
// about, if any.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of field and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrDuplicateReview = &Error{Kind: KindDuplicateReview}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInvalidCode     = &Error{Kind: KindInvalidCode}
	ErrDispatch        = &Error{Kind: KindDispatch}
)

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func DuplicateReview() *Error {
	return &Error{Kind: KindDuplicateReview, Message: "you have already reviewed this title"}
}

func Conflict(field, msg string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: msg}
}

func InvalidCode() *Error {
	return &Error{Kind: KindInvalidCode, Field: "confirmation_code", Message: "invalid confirmation code"}
}

func Dispatch(err error) *Error {
	return &Error{Kind: KindDispatch, Message: "failed to send confirmation code", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes business failures so the boundary can render them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientFunds
	KindUnprocessable
	KindUnauthorized
	KindRateLimited
)

var kindNames = map[ErrorKind]string{
	KindInternal:          "internal",
	KindValidation:        "validation",
	KindNotFound:          "not_found",
	KindConflict:          "conflict",
	KindInsufficientFunds: "insufficient_funds",
	KindUnprocessable:     "unprocessable",
	KindUnauthorized:      "unauthorized",
	KindRateLimited:       "rate_limited",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed business error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) error { return &Error{Kind: KindConflict, Message: msg} }

func InsufficientFunds(msg string) error {
	return &Error{Kind: KindInsufficientFunds, Message: msg}
}

func Unprocessable(msg string) error { return &Error{Kind: KindUnprocessable, Message: msg} }

func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }

func RateLimited(msg string) error { return &Error{Kind: KindRateLimited, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// UnprocessableWrap keeps the provider failure as the cause.
func UnprocessableWrap(msg string, err error) error {
	return &Error{Kind: KindUnprocessable, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain; anything else is internal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of a typed error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

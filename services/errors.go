package services

import "errors"

// ErrorKind classifies expected business failures so the transport layer can
// map each to a status code without parsing messages.
type ErrorKind string

const (
	ErrInvalidInput      ErrorKind = "invalid_input"
	ErrNotFound          ErrorKind = "not_found"
	ErrExpired           ErrorKind = "expired"
	ErrAlreadyAttributed ErrorKind = "already_attributed"
	ErrInvalidToken      ErrorKind = "invalid_token"
	ErrSelfReferral      ErrorKind = "self_referral"
	ErrAlreadyClaimed    ErrorKind = "already_claimed"
	ErrConflict          ErrorKind = "conflict"
)

// Error is a tagged business failure. Engines return it for every expected
// error condition; anything else that comes back is a fault (store down,
// corrupted data) and should surface as a generic 500 at the boundary.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the error kind, or "" when err is not a business failure.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

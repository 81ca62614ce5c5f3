// Package apperr classifies application errors so HTTP handlers can map them
// to response statuses without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP surfacing.
type Kind int

const (
	// KindInternal is an unclassified server-side failure.
	KindInternal Kind = iota
	// KindValidation indicates malformed or missing input.
	KindValidation
	// KindAuth indicates a bad or expired proof.
	KindAuth
	// KindForbidden indicates the caller is not allowed: domain not
	// allowlisted, wallet owned by another principal, wrong network.
	KindForbidden
	// KindConflict indicates a state conflict, such as an already-completed
	// mint run or a duplicate settlement.
	KindConflict
	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound
	// KindUpstream indicates a collaborator (indexer, router, burn webhook)
	// failed or returned a malformed response.
	KindUpstream
	// KindMethod indicates a wrong HTTP verb.
	KindMethod
)

// Error carries a kind, a short user-facing message, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a fixed message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error of the given kind wrapping a cause. The cause is kept
// for server-side logs; only msg is shown to callers.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the user-facing message of err. For unclassified errors it
// returns a generic message so internals are not leaked to callers.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "unexpected error"
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindMethod:
		return http.StatusMethodNotAllowed
	case KindUpstream, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

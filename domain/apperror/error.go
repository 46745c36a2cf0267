package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConfig       Kind = "config"
	KindAuth         Kind = "auth"
	KindProvider     Kind = "provider"
	KindValidation   Kind = "validation"
	KindPersistence  Kind = "persistence"
	KindNotConnected Kind = "not_connected"
	KindNotFound     Kind = "not_found"
)

// Error carries a Kind so callers can branch with errors.Is against the sentinels below.
type Error struct {
	Kind       Kind
	Op         string
	Message    string
	StatusCode int // upstream HTTP status for provider errors
	Err        error
}

var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrAuth         = &Error{Kind: KindAuth}
	ErrProvider     = &Error{Kind: KindProvider}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPersistence  = &Error{Kind: KindPersistence}
	ErrNotConnected = &Error{Kind: KindNotConnected}
	ErrNotFound     = &Error{Kind: KindNotFound}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Message != "" || t.Err != nil || t.StatusCode != 0 {
		return e == t
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Config(op, msg string) error { return newError(KindConfig, op, msg, nil) }

func Auth(op, msg string) error { return newError(KindAuth, op, msg, nil) }

func Validation(op, msg string) error { return newError(KindValidation, op, msg, nil) }

func NotConnected(op, msg string) error { return newError(KindNotConnected, op, msg, nil) }

func NotFound(op, msg string) error { return newError(KindNotFound, op, msg, nil) }

func Persistence(op string, err error) error { return newError(KindPersistence, op, "", err) }

func Provider(op string, status int, msg string, err error) error {
	e := newError(KindProvider, op, msg, err)
	e.StatusCode = status
	return e
}

// KindOf returns the Kind of the first *Error in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the upstream HTTP status carried by a provider error, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindProvider:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotConnected:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Package apperr classifies request-scoped failures so the HTTP layer can map
// them to status codes without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindClientInput
	KindNotFound
	KindSynthesis
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindNotFound:
		return "not_found"
	case KindSynthesis:
		return "synthesis"
	default:
		return "internal"
	}
}

// Error carries a Kind, a message safe to show to clients, and an optional cause.
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

func Input(msg string) *Error {
	return &Error{Kind: KindClientInput, Msg: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Synthesis(msg string, err error) *Error {
	return &Error{Kind: KindSynthesis, Msg: msg, Err: err}
}

func Wrap(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindClientInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Internal errors keep
// their full text since the server only binds to local interfaces.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return err.Error()
}

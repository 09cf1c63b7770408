package client

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")
	ErrProtocolViolation = errors.New("protocol violation")
)

// Error is returned by the remote clients. Kind is one of the sentinel errors above.
type Error struct {
	Kind       error
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds a ValidationError for input rejected before any request is made.
func Validation(op, message string) error {
	return &Error{Kind: ErrValidation, Op: op, Message: message}
}

func networkError(op string, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

func serverError(op string, status int, body []byte) error {
	return &Error{Kind: ErrServer, Op: op, StatusCode: status, Message: snippet(body)}
}

func protocolError(op, message string) error {
	return &Error{Kind: ErrProtocolViolation, Op: op, Message: message}
}

// snippet trims a response body for inclusion in an error message
func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

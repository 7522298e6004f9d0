// Package errors provides the coded errors shared by the consecrates
// packages.
//
// The request core returns typed errors (transport, decode, would-block)
// that each report a [Code]. The command line and the proxy map that code to
// an exit status or an HTTP response without depending on the concrete error
// types:
//
//	switch errors.GetCode(err) {
//	case errors.ErrCodeRateLimited:
//	    // the rate-limit window is still open; nothing was sent
//	case errors.ErrCodeNetwork:
//	    // registry unreachable
//	case errors.ErrCodeDecode:
//	    // registry answered with something unexpected
//	}
//
// Codes are grouped by prefix: INVALID_* for rejected input, NETWORK_ERROR
// and RATE_LIMITED for conditions that may clear on their own, DECODE_ERROR
// for payloads and INTERNAL_ERROR for everything else.
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"
	ErrCodeInvalidPath    Code = "INVALID_PATH"

	ErrCodeNotFound Code = "NOT_FOUND"

	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	ErrCodeDecode Code = "DECODE_ERROR"

	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Coder is implemented by error types that carry a [Code] without being an
// [*Error], such as the transport and decode errors of the request core.
type Coder interface {
	Code() Code
}

// Error is an error with a code, a message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error around cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// GetCode returns the code of the outermost *Error or [Coder] in err's
// chain, or "" if there is none.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case Coder:
			return e.Code()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// Is reports whether [GetCode] of err is code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// Temporary reports whether err may clear without the caller changing
// anything: an open rate-limit window or an unreachable registry.
func Temporary(err error) bool {
	switch GetCode(err) {
	case ErrCodeNetwork, ErrCodeRateLimited:
		return true
	}
	return false
}

// UserMessage renders err for people. The code prefix of every *Error in
// the chain is dropped; messages and causes are kept.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + UserMessage(e.Cause)
	}
	if outer := err.Error(); outer != e.Error() {
		// err wraps e with extra context, e.g. fmt.Errorf("search: %w", e).
		if i := len(outer) - len(e.Error()); i > 0 && outer[i:] == e.Error() {
			return outer[:i] + msg
		}
	}
	return msg
}

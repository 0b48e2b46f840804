// Package errors provides standardized pipeline errors with codes for the
// recorder ingest agent.
//
// Usage:
//
//	// In components - return typed errors
//	if resp.StatusCode >= 300 {
//	    return errors.Api(resp.StatusCode, string(body))
//	}
//
//	// In the orchestrator - check with errors.Is
//	if errors.Is(err, errors.ErrCancelled) {
//	    return err
//	}
//
//	// Or use the Code directly for switch statements
//	var pipeErr *errors.Error
//	if errors.As(err, &pipeErr) {
//	    switch pipeErr.Code {
//	    case errors.CodeApi:
//	        log.Warn("upstream rejected batch", "details", pipeErr.Details)
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the agent.
const (
	CodeIO           Code = "IO"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeHttp         Code = "HTTP"
	CodeApi          Code = "API"
	CodeFfmpeg       Code = "FFMPEG"
	CodeCancelled    Code = "CANCELLED"
	CodeOther        Code = "OTHER"
)

// Error is a pipeline error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// ApiDetails carries the response status and captured body for a CodeApi
// error.
type ApiDetails struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// Sentinel errors for use with errors.Is().
var (
	ErrIO           = &Error{Code: CodeIO, Message: "i/o error"}
	ErrInvalidInput = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrHttp         = &Error{Code: CodeHttp, Message: "transport error"}
	ErrApi          = &Error{Code: CodeApi, Message: "api error"}
	ErrFfmpeg       = &Error{Code: CodeFfmpeg, Message: "ffmpeg error"}
	ErrCancelled    = &Error{Code: CodeCancelled, Message: "cancelled"}
	ErrOther        = &Error{Code: CodeOther, Message: "error"}
)

// Constructor functions for creating errors with custom messages.

// IO wraps an underlying filesystem error.
func IO(err error) *Error {
	return &Error{Code: CodeIO, Message: "i/o error", cause: err}
}

// IOf wraps an underlying filesystem error with a formatted message.
func IOf(err error, format string, args ...any) *Error {
	return &Error{Code: CodeIO, Message: fmt.Sprintf(format, args...), cause: err}
}

// InvalidInput creates an invalid-input error.
func InvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

// InvalidInputf creates an invalid-input error with formatted message.
func InvalidInputf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Http wraps a transport-level error: the request never produced a
// response (DNS failure, connection refused, timeout).
func Http(err error) *Error {
	return &Error{Code: CodeHttp, Message: "transport error", cause: err}
}

// Httpf wraps a transport-level error with a formatted message.
func Httpf(err error, format string, args ...any) *Error {
	return &Error{Code: CodeHttp, Message: fmt.Sprintf(format, args...), cause: err}
}

// Api creates an error for a non-2xx HTTP response, carrying the status
// code and captured response body as details.
func Api(status int, body string) *Error {
	return &Error{
		Code:    CodeApi,
		Message: fmt.Sprintf("unexpected status %d", status),
		Details: ApiDetails{Status: status, Body: body},
	}
}

// Ffmpeg creates an error for a non-zero encoder exit, carrying the
// captured stderr text as the message.
func Ffmpeg(stderr string) *Error {
	return &Error{Code: CodeFfmpeg, Message: stderr}
}

// Ffmpegf creates an ffmpeg error with a formatted message.
func Ffmpegf(format string, args ...any) *Error {
	return &Error{Code: CodeFfmpeg, Message: fmt.Sprintf(format, args...)}
}

// Cancelled returns the shared cancellation error.
func Cancelled() *Error {
	return ErrCancelled
}

// Other wraps any error that doesn't fit the other kinds.
func Other(err error) *Error {
	return &Error{Code: CodeOther, Message: err.Error(), cause: err}
}

// Otherf creates a CodeOther error with a formatted message.
func Otherf(format string, args ...any) *Error {
	return &Error{Code: CodeOther, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with an explicit code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with an explicit code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

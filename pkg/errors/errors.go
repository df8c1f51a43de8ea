package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes of a scrape run
type ErrorType string

const (
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	ErrorTypeProxyProbe          ErrorType = "proxy_probe"
	ErrorTypeSearchRequest       ErrorType = "search_request"
	ErrorTypeDownload            ErrorType = "download"
	ErrorTypeNoWorkingProxies    ErrorType = "no_working_proxies"
	ErrorTypeConfig              ErrorType = "config"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// Error carries a failure class, an optional HTTP status and the cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error without a cause
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around err
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithStatus creates a typed error for an unexpected HTTP status
func WithStatus(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// IsType reports whether any error in err's chain is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

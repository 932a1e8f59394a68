package provider

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised by the eSewa flows
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration" // bad or missing setup field
	KindValidation    ErrorKind = "validation"    // bad amount, identifier or empty field
	KindSignature     ErrorKind = "signature"     // missing signed field, missing signature or mismatch
	KindDecode        ErrorKind = "decode"        // base64 or JSON decoding failure
	KindAPI           ErrorKind = "api"           // gateway answered with a non-zero code
	KindAuth          ErrorKind = "auth"          // protected call without a token, or no token issued
	KindTransport     ErrorKind = "transport"     // network, timeout or non-2xx status
)

// Error is the single error type returned by the flows.
// Field names the offending input when there is one; Code carries the
// HTTP status for transport errors and the gateway code for API errors.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Code    int
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := "esewa: " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrAuth) works for
// every auth failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Message != "" || t.Field != "" {
		return t.Kind == e.Kind && t.Message == e.Message && t.Field == e.Field
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrSignature     = &Error{Kind: KindSignature}
	ErrDecode        = &Error{Kind: KindDecode}
	ErrAPI           = &Error{Kind: KindAPI}
	ErrAuth          = &Error{Kind: KindAuth}
	ErrTransport     = &Error{Kind: KindTransport}
)

// KindOf returns the kind of a flow error, or an empty kind for foreign errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewConfigurationError reports a bad or missing configuration field
func NewConfigurationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports an invalid input field
func NewValidationError(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewSignatureError reports a signature problem; field is empty for a mismatch
func NewSignatureError(field, format string, args ...any) *Error {
	return &Error{Kind: KindSignature, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewDecodeError wraps a base64 or JSON decoding failure
func NewDecodeError(message string, err error) *Error {
	return &Error{Kind: KindDecode, Message: message, Err: err}
}

// NewAPIError carries the gateway's error code and message
func NewAPIError(code int, message string) *Error {
	return &Error{Kind: KindAPI, Code: code, Message: "API error: " + message}
}

// NewAuthError reports an authentication state problem
func NewAuthError(format string, args ...any) *Error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// NewTransportError wraps a network failure or a non-2xx status
func NewTransportError(statusCode int, message string, err error) *Error {
	return &Error{Kind: KindTransport, Code: statusCode, Message: message, Err: err}
}

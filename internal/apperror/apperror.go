// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package apperror defines the structured error taxonomy shared by the
// record pipeline and the HTTP layer.
//
// Every error that crosses the API boundary is one of these kinds and
// serializes to {code, message, data: {status, ...}}. The HTTP status is
// carried inside data so clients that only read bodies still see it.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the record pipeline.
const (
	CodeValidation         = "validation_error"
	CodeNotFound           = "not_found"
	CodeLockTimeout        = "lock_timeout"
	CodeStorageWrite       = "storage_write_error"
	CodeAuthorization      = "authorization_error"
	CodeExternalDependency = "external_dependency_error"
	CodeInternal           = "internal_error"
)

// Error is a structured application error. Data always contains a "status"
// key with the HTTP status code; callers may attach further diagnostic keys.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status carried in Data, defaulting to 500.
func (e *Error) Status() int {
	if s, ok := e.Data["status"].(int); ok {
		return s
	}
	return http.StatusInternalServerError
}

// With attaches an extra diagnostic key to Data and returns the error.
func (e *Error) With(key string, value any) *Error {
	e.Data[key] = value
	return e
}

// WithCause records the underlying error without exposing it in Data.
// Use Diagnose to surface driver details for privileged callers only.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Diagnose copies the underlying cause into Data for privileged or debug
// callers. It is a no-op when there is no cause.
func (e *Error) Diagnose() *Error {
	if e.cause != nil {
		e.Data["cause"] = e.cause.Error()
	}
	return e
}

func newError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    map[string]any{"status": status},
	}
}

// Validation reports malformed or missing required input (400).
func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...), http.StatusBadRequest)
}

// NotFound reports a name-resolution failure (400). Resolution failures are
// client input problems, not missing resources, hence the 400.
func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, fmt.Sprintf(format, args...), http.StatusBadRequest)
}

// WithSuggestions attaches near-miss candidates to a NotFound error.
func (e *Error) WithSuggestions(suggestions []string) *Error {
	if len(suggestions) > 0 {
		e.Data["suggestions"] = suggestions
	}
	return e
}

// LockTimeout reports allocator lock contention (503). Callers should retry.
func LockTimeout(namespace string) *Error {
	return newError(CodeLockTimeout,
		fmt.Sprintf("timed out waiting for id allocation lock %q", namespace),
		http.StatusServiceUnavailable)
}

// StorageWrite reports an insert/update failure not explained by a key
// collision (500). The driver error is kept as the cause and only surfaced
// via Diagnose.
func StorageWrite(message string, cause error) *Error {
	return newError(CodeStorageWrite, message, http.StatusInternalServerError).WithCause(cause)
}

// Unauthenticated reports a missing or invalid caller identity (401).
func Unauthenticated(message string) *Error {
	return newError(CodeAuthorization, message, http.StatusUnauthorized)
}

// IdentityMismatch reports a caller acting on another identity without
// permission (400).
func IdentityMismatch(message string) *Error {
	return newError(CodeAuthorization, message, http.StatusBadRequest)
}

// ExternalDependency reports a missing collaborator contract, such as an
// unregistered content type (500).
func ExternalDependency(format string, args ...any) *Error {
	return newError(CodeExternalDependency, fmt.Sprintf(format, args...), http.StatusInternalServerError)
}

// Internal wraps an unexpected error (500).
func Internal(message string, cause error) *Error {
	return newError(CodeInternal, message, http.StatusInternalServerError).WithCause(cause)
}

// From converts any error into an *Error, passing structured errors through
// unchanged and wrapping everything else as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("unexpected error", err)
}

// IsCode reports whether err is a structured error with the given code.
func IsCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}

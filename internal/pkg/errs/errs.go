/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, a user-facing message, the HTTP status it came from and,
when there is one, the underlying cause.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gymbro/internal/pkg/logx"
)

// CustomError is the error type surfaced by every client operation.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing error description.
	Message string

	// Status is the HTTP status the error was derived from, or the code's usual status.
	Status int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *CustomError with the same code.
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError constructs a *CustomError from a predefined code. The optional details are
// printf arguments for message templates containing a verb. Unknown codes yield ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &CustomError{
			Code:    unknownErr.Code,
			Message: unknownErr.Message,
			Status:  unknownErr.Status,
		}
	}

	customErr := templateErr

	if strings.Contains(customErr.Message, "%") {
		if len(details) > 0 {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			customErr.Message = "Invalid request."
		}
	} else if len(details) > 0 {
		logx.Warn(
			"Details provided for error, but message template has no formatting placeholders. Details ignored.",
			"code", code,
		)
	}

	return &customErr
}

// Wrap builds a *CustomError for code whose cause is err.
func Wrap(code int, err error, details ...any) *CustomError {
	customErr := NewError(code, details...)
	customErr.Err = err
	return customErr
}

// FromStatus maps a non-2xx HTTP status and the server's message to a *CustomError.
// 401/403 are auth failures, 5xx are server failures, every other 4xx is a validation failure.
func FromStatus(status int, serverMessage string) *CustomError {
	var customErr *CustomError

	switch {
	case status == http.StatusUnauthorized:
		customErr = NewError(ErrUnauthorized)
	case status == http.StatusForbidden:
		customErr = NewError(ErrForbidden)
	case status == http.StatusNotFound:
		customErr = NewError(ErrNotFound)
	case status == http.StatusTooManyRequests:
		customErr = NewError(ErrRateLimitExceeded)
	case status == http.StatusRequestEntityTooLarge:
		customErr = NewError(ErrRequestEntityTooLarge)
	case status >= 500:
		customErr = NewError(ErrServer)
	case status >= 400:
		if serverMessage == "" {
			customErr = NewError(ErrValidation)
		} else {
			customErr = NewError(ErrValidation, serverMessage)
		}
	default:
		customErr = NewError(ErrInvalidResponse)
	}

	customErr.Status = status
	if serverMessage != "" && customErr.Code != ErrValidation {
		customErr.Err = errors.New(serverMessage)
	}

	return customErr
}

// CodeOf returns the business code carried by err, or ErrUnknown.
func CodeOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Code
	}
	return ErrUnknown
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Status
	}
	return 0
}

// IsAuth reports whether err is an authentication or session failure.
func IsAuth(err error) bool {
	code := CodeOf(err)
	return code >= 2000 && code < 3000
}

// IsNetwork reports whether err is a failure with no server response.
func IsNetwork(err error) bool {
	return CodeOf(err) == ErrNetwork
}

// UserMessage returns the message to show the user for err.
func UserMessage(err error) string {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	return errorMap[ErrUnknown].Message
}

/*
Package errs provides custom error types and application-level error code constants.

This file maps every code to the user-facing message shown by the UI and to the HTTP
status it usually corresponds to.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: Request and Transport Errors
	ErrNetwork:               {Code: ErrNetwork, Message: "Cannot reach the server. Check your connection."},
	ErrInvalidRequest:        {Code: ErrInvalidRequest, Message: "The request could not be prepared."},
	ErrInvalidResponse:       {Code: ErrInvalidResponse, Message: "Unexpected response from the server."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Upload is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrValidation:            {Code: ErrValidation, Message: "%s", Status: http.StatusBadRequest},
	ErrNotFound:              {Code: ErrNotFound, Message: "Not found.", Status: http.StatusNotFound},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Authentication and Session Errors
	ErrUnauthorized:        {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrForbidden:           {Code: ErrForbidden, Message: "You are not allowed to do that.", Status: http.StatusForbidden},
	ErrSessionExpired:      {Code: ErrSessionExpired, Message: "Your session has expired. Please sign in again.", Status: http.StatusUnauthorized},
	ErrLoginRequired:       {Code: ErrLoginRequired, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials:  {Code: ErrInvalidCredentials, Message: "Incorrect email or password.", Status: http.StatusUnauthorized},
	ErrGoogleDisabled:      {Code: ErrGoogleDisabled, Message: "Google sign-in is not available."},
	ErrOAuthStateMismatch:  {Code: ErrOAuthStateMismatch, Message: "Google sign-in failed. Please try again."},
	ErrOAuthExchangeFailed: {Code: ErrOAuthExchangeFailed, Message: "Google sign-in failed. Please try again."},

	// 3xxx: Chat and Socket Errors
	ErrSocketUnavailable:     {Code: ErrSocketUnavailable, Message: "Chat is offline."},
	ErrInvalidFrame:          {Code: ErrInvalidFrame, Message: "Received a malformed chat event."},
	ErrUnknownEvent:          {Code: ErrUnknownEvent, Message: "Received an unknown chat event: %s"},
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message cannot be empty."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrSendQueueFull:         {Code: ErrSendQueueFull, Message: "Chat is busy. Please try again."},

	// 5xxx: Server and Internal Errors
	ErrServer:  {Code: ErrServer, Message: "Something went wrong on our side. Please try again.", Status: http.StatusInternalServerError},
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again."},
}

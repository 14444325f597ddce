/*
Package resp provides helpers for JSON response envelopes.

On the client side it decodes backend responses, which arrive either wrapped in a
{"data": ...} envelope or as a bare JSON value, and extracts error messages from failure
bodies. On the server side it writes the standardized envelope used by the local
diagnostics listener.
*/
package resp

import (
	"bytes"
	"encoding/json"
	"net/http"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure of the diagnostics listener.
type JSONResponse struct {
	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data any `json:"data,omitempty"`
}

// Decode unmarshals a successful backend response body into dst.
// A top-level object with a "data" member is unwrapped first; an empty body leaves dst untouched.
func Decode(body []byte, dst any) *errs.CustomError {
	body = bytes.TrimSpace(body)
	if dst == nil || len(body) == 0 {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}

	if body[0] == '{' {
		if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
			if err := json.Unmarshal(envelope.Data, dst); err == nil {
				return nil
			}
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return errs.Wrap(errs.ErrInvalidResponse, err)
	}

	return nil
}

// ErrorMessage extracts the human-readable message from a failure body.
// It understands {"message": ...} and {"error": ...}; anything else yields "".
func ErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// RespondJSON sets the Content-Type and sends the JSON payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	res := JSONResponse{
		Code:    0,
		Message: "success",
		Data:    data,
	}
	RespondJSON(w, r, http.StatusOK, res)
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	res := JSONResponse{
		Code:    customErr.Code,
		Message: customErr.Message,
	}
	RespondJSON(w, r, status, res)
}

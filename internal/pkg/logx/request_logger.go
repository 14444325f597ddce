/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP logging hooks: an http.RoundTripper that records every outbound
REST call the client makes, and a chi middleware for the local diagnostics listener.
Neither logs headers or bodies, so bearer tokens never reach the log stream.
*/
package logx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// roundTripper wraps another transport and logs the outcome of each request.
type roundTripper struct {
	next http.RoundTripper
}

// Transport returns an http.RoundTripper that logs method, path, status and latency
// of each outbound request. A nil next uses http.DefaultTransport.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *roundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	logger := Logger().With().
		Str("component", "http_client").
		Str("request_method", r.Method).
		Str("request_path", r.URL.Path).
		Logger()

	t1 := time.Now()
	res, err := t.next.RoundTrip(r)
	latency := time.Since(t1)

	if err != nil {
		logger.Error().Err(err).Dur("latency", latency).Msg("Request failed without response")
		return nil, err
	}

	logEvent := logger.Debug()
	if res.StatusCode >= 500 {
		logEvent = logger.Error()
	} else if res.StatusCode >= 400 {
		logEvent = logger.Warn()
	}

	logEvent.
		Int("status", res.StatusCode).
		Dur("latency", latency).
		Msg("Request completed")

	return res, nil
}

// RequestLogger returns an HTTP middleware that logs each request served by the diagnostics listener.
// It creates a new logger instance for each request and injects it into the request context.
func RequestLogger() func(next http.Handler) http.Handler {
	baseLogger := Logger()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			requestID := middleware.GetReqID(r.Context())

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := baseLogger.With().
				Str("component", "diagnostics").
				Str("request_id", requestID).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))

			t1 := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()

			logEvent := logger.Debug()
			if status >= 500 {
				logEvent = logger.Error()
			} else if status >= 400 {
				logEvent = logger.Warn()
			}

			logEvent.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(t1)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}

/*
Package handler provides the local diagnostics listener of the GYMbro client.

This file defines the Router, applying request ids, panic recovery, request logging and
CORS before delegating to read-only views of the session and chat state. The listener
never exposes tokens.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"gymbro/internal/pkg/logx"
	"gymbro/internal/pkg/metrics"
	"gymbro/internal/pkg/resp"
)

// Router sets up the diagnostics routing table.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":    "ok",
			"service":   "GYMbro client",
			"logged_in": deps.Session.IsLoggedIn(),
			"connected": deps.Chat.Connected(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/session", HandleGetSession(deps))
	r.Get("/presence", HandleGetPresence(deps))

	r.Route("/chats/{id}", func(chats chi.Router) {
		chats.Get("/typing", HandleGetTyping(deps))
		chats.Get("/messages", HandleGetMessages(deps))
	})

	return r
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gymbro/internal/app/chat"
	"gymbro/internal/app/user"
	"gymbro/internal/pkg/resp"
)

// SessionView is the token-free projection of the session.
type SessionView struct {
	LoggedIn bool          `json:"loggedIn"`
	UserID   string        `json:"userId,omitempty"`
	User     *user.Summary `json:"user,omitempty"`
}

// PresenceView lists the online users with their connection ids.
type PresenceView struct {
	Connected bool              `json:"connected"`
	Online    map[string]string `json:"online"`
}

// TypingView lists the users typing in one chat.
type TypingView struct {
	ChatID string   `json:"chatId"`
	Users  []string `json:"users"`
}

// MessagesView is one chat's local message list.
type MessagesView struct {
	ChatID   string         `json:"chatId"`
	HasMore  bool           `json:"hasMore"`
	Messages []chat.Message `json:"messages"`
}

func HandleGetSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := deps.Session.Current()

		resp.RespondSuccess(w, r, SessionView{
			LoggedIn: current.LoggedIn(),
			UserID:   deps.Session.UserID(),
			User:     current.User,
		})
	}
}

func HandleGetPresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, PresenceView{
			Connected: deps.Chat.Connected(),
			Online:    deps.Chat.Presence().Snapshot(),
		})
	}
}

func HandleGetTyping(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := chi.URLParam(r, "id")

		resp.RespondSuccess(w, r, TypingView{
			ChatID: chatID,
			Users:  deps.Chat.TypingUsers(chatID),
		})
	}
}

func HandleGetMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := chi.URLParam(r, "id")

		messages := deps.Chat.Messages(chatID)
		if messages == nil {
			messages = []chat.Message{}
		}

		resp.RespondSuccess(w, r, MessagesView{
			ChatID:   chatID,
			HasMore:  deps.Chat.HasMore(chatID),
			Messages: messages,
		})
	}
}

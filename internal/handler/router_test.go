package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gymbro/internal/app/api"
	"gymbro/internal/app/chat"
	"gymbro/internal/app/session"
	"gymbro/internal/app/user"
	"gymbro/internal/configs"
)

type stubREST struct{}

func (stubREST) SendMessage(_ context.Context, chatID, content, tempID string) (*api.Message, error) {
	return &api.Message{ID: "m1", ChatID: chatID, SenderID: "u1", Content: content, TempID: tempID, CreatedAt: time.Now()}, nil
}

func (stubREST) MarkRead(context.Context, string) error { return nil }

func (stubREST) ListMessages(context.Context, string, string, int) (*api.MessagePage, error) {
	return &api.MessagePage{}, nil
}

func (stubREST) RefreshSession(context.Context) error { return nil }

func newTestRouter(t *testing.T, loggedIn bool) (http.Handler, *chat.Transport) {
	t.Helper()
	ctx := context.Background()

	sessions, err := session.Open(ctx, session.NewMemoryStore())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if loggedIn {
		if err := sessions.Begin(ctx, "secret-access", "secret-refresh", &user.Summary{ID: "u1", Username: "lifter"}); err != nil {
			t.Fatalf("begin session: %v", err)
		}
	}

	transport := chat.NewTransport(chat.Options{
		SocketURL: "ws://127.0.0.1:1/socket",
		Session:   sessions,
		REST:      stubREST{},
	})
	t.Cleanup(transport.Close)

	cfg := &configs.AppConfig{Environment: "development"}
	return Router(&AppDeps{Config: cfg, Session: sessions, Chat: transport}), transport
}

// get serves path and decodes the envelope's data member into out.
func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if out != nil {
		var env struct {
			Code int             `json:"code"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v (body %s)", path, err, rec.Body.String())
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode %s data: %v", path, err)
		}
	}
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, false)

	var data map[string]any
	rec := get(t, h, "/health", &data)

	if rec.Code != http.StatusOK || data["status"] != "ok" || data["logged_in"] != false {
		t.Errorf("health = %d %v", rec.Code, data)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestSession_NeverExposesTokens(t *testing.T) {
	h, _ := newTestRouter(t, true)

	var view SessionView
	rec := get(t, h, "/session", &view)

	if !view.LoggedIn || view.UserID != "u1" || view.User == nil || view.User.Username != "lifter" {
		t.Errorf("view = %+v", view)
	}
	body := rec.Body.String()
	if strings.Contains(body, "secret-access") || strings.Contains(body, "secret-refresh") {
		t.Errorf("tokens leaked: %s", body)
	}
}

func TestPresence_Offline(t *testing.T) {
	h, _ := newTestRouter(t, true)

	var view PresenceView
	get(t, h, "/presence", &view)

	if view.Connected || len(view.Online) != 0 {
		t.Errorf("view = %+v", view)
	}
}

func TestChatViews(t *testing.T) {
	h, transport := newTestRouter(t, true)

	if _, err := transport.Send(context.Background(), "c1", "deadlift pr"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	var messages struct {
		ChatID   string `json:"chatId"`
		HasMore  bool   `json:"hasMore"`
		Messages []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
			Status  string `json:"status"`
		} `json:"messages"`
	}
	get(t, h, "/chats/c1/messages", &messages)

	if messages.ChatID != "c1" || len(messages.Messages) != 1 {
		t.Fatalf("messages = %+v", messages)
	}
	if got := messages.Messages[0]; got.ID != "m1" || got.Status != string(chat.StatusSent) {
		t.Errorf("message = %+v", got)
	}

	var typing TypingView
	get(t, h, "/chats/c1/typing", &typing)
	if typing.ChatID != "c1" || len(typing.Users) != 0 {
		t.Errorf("typing = %+v", typing)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, false)

	rec := get(t, h, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "gymbro_client_socket_connected") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

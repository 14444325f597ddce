package logx

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// capture points the global logger at a buffer in production mode for the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	initLogger(&buf, false)
	return &buf
}

func TestLevelsAndFields(t *testing.T) {
	buf := capture(t)

	Debug("dropped in production")
	Info("session restored", "user_id", "u1")
	Warn("odd fields", "dangling")

	out := buf.String()
	if strings.Contains(out, "dropped in production") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, `"user_id":"u1"`) || !strings.Contains(out, `"message":"session restored"`) {
		t.Errorf("info line missing fields: %s", out)
	}
	if !strings.Contains(out, "logx_test.go") {
		t.Errorf("caller should point at the calling file: %s", out)
	}
	if !strings.Contains(out, "received odd number of fields") {
		t.Errorf("odd field list not reported: %s", out)
	}
}

func TestComponent(t *testing.T) {
	buf := capture(t)

	logger := Component("chat")
	logger.Info().Msg("connected")

	if !strings.Contains(buf.String(), `"component":"chat"`) {
		t.Errorf("component tag missing: %s", buf.String())
	}
}

func TestTransport_LogsStatus(t *testing.T) {
	buf := capture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/posts?page=2", nil)
	req.Header.Set("Authorization", "Bearer secret-token")

	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	res.Body.Close()

	out := buf.String()
	if !strings.Contains(out, `"status":503`) || !strings.Contains(out, `"level":"error"`) {
		t.Errorf("5xx not logged at error level: %s", out)
	}
	if !strings.Contains(out, `"request_path":"/posts"`) {
		t.Errorf("path missing: %s", out)
	}
	if strings.Contains(out, "secret-token") {
		t.Error("bearer token leaked into the log")
	}
}

func TestRequestLogger(t *testing.T) {
	buf := capture(t)

	var ctxLogger *zerolog.Logger
	handler := middleware.RequestID(RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = zerolog.Ctx(r.Context())
		http.NotFound(w, r)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chats/c1/typing", nil))

	if ctxLogger == nil || ctxLogger.GetLevel() == zerolog.Disabled {
		t.Error("request logger not injected into the context")
	}
	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"request_id"`) {
		t.Errorf("request not logged: %s", out)
	}
}

package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"

	"gymbro/internal/app/user"
)

// unsignedToken builds a JWT-shaped string carrying claims. The signature is not valid,
// which is fine because the client never verifies it.
func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

func TestOpen_EmptyStoreIsLoggedOut(t *testing.T) {
	m, err := Open(context.Background(), NewMemoryStore())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if m.IsLoggedIn() {
		t.Error("expected logged out with no tokens")
	}
	if got := m.UserID(); got != "" {
		t.Errorf("UserID() = %q, want empty", got)
	}
}

func TestBegin_PersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	var got []Session
	unsubscribe := m.Subscribe(func(s Session) { got = append(got, s) })
	defer unsubscribe()

	u := &user.Summary{ID: "u1", Username: "lifter"}
	if err := m.Begin(ctx, "access-1", "refresh-1", u); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	if !m.IsLoggedIn() {
		t.Fatal("expected logged in after Begin")
	}
	if v, _, _ := store.Get(ctx, KeyAccessToken); v != "access-1" {
		t.Errorf("stored access token = %q", v)
	}
	if v, _, _ := store.Get(ctx, KeyRefreshToken); v != "refresh-1" {
		t.Errorf("stored refresh token = %q", v)
	}
	if len(got) != 1 || got[0].User == nil || got[0].User.ID != "u1" {
		t.Fatalf("listener got %+v", got)
	}

	// Mutating the caller's user must not leak into the session.
	u.Username = "changed"
	if m.Current().User.Username != "lifter" {
		t.Error("session user aliased the caller's value")
	}
}

func TestUpdateTokens_EmptyRefreshKeepsOld(t *testing.T) {
	ctx := context.Background()
	m, _ := Open(ctx, NewMemoryStore())
	if err := m.Begin(ctx, "a1", "r1", nil); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	if err := m.UpdateTokens(ctx, "a2", ""); err != nil {
		t.Fatalf("UpdateTokens() error: %v", err)
	}
	if m.AccessToken() != "a2" || m.RefreshToken() != "r1" {
		t.Errorf("tokens = %q/%q, want a2/r1", m.AccessToken(), m.RefreshToken())
	}

	if err := m.UpdateTokens(ctx, "a3", "r3"); err != nil {
		t.Fatalf("UpdateTokens() error: %v", err)
	}
	if m.AccessToken() != "a3" || m.RefreshToken() != "r3" {
		t.Errorf("tokens = %q/%q, want a3/r3", m.AccessToken(), m.RefreshToken())
	}
}

func TestClear_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m, _ := Open(ctx, store)
	_ = m.Begin(ctx, "a1", "r1", &user.Summary{ID: "u1"})
	_ = store.Set(ctx, KeyPostUpdates, "{}")

	notified := 0
	m.Subscribe(func(s Session) {
		notified++
		if s.LoggedIn() {
			t.Error("listener saw a logged-in session after Clear")
		}
	})

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if m.IsLoggedIn() || m.RefreshToken() != "" || m.Current().User != nil {
		t.Errorf("session not cleared: %+v", m.Current())
	}
	for _, key := range []string{KeyAccessToken, KeyRefreshToken, KeyUser} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Errorf("key %q still stored", key)
		}
	}
	if _, ok, _ := store.Get(ctx, KeyPostUpdates); !ok {
		t.Error("Clear removed the feed cache key")
	}
	if notified != 1 {
		t.Errorf("notified %d times, want 1", notified)
	}

	// Clearing an empty session does not notify again.
	_ = m.Clear(ctx)
	if notified != 1 {
		t.Errorf("notified %d times after second Clear, want 1", notified)
	}
}

func TestUserID_FallsBackToClaims(t *testing.T) {
	ctx := context.Background()
	m, _ := Open(ctx, NewMemoryStore())

	token := unsignedToken(t, map[string]any{"userId": "from-claims"})
	if err := m.Begin(ctx, token, "r", nil); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if got := m.UserID(); got != "from-claims" {
		t.Errorf("UserID() = %q, want from-claims", got)
	}

	if err := m.SetUser(ctx, &user.Summary{ID: "u9"}); err != nil {
		t.Fatalf("SetUser() error: %v", err)
	}
	if got := m.UserID(); got != "u9" {
		t.Errorf("UserID() = %q, want u9", got)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	m, _ := Open(ctx, NewMemoryStore())

	calls := 0
	unsubscribe := m.Subscribe(func(Session) { calls++ })
	_ = m.Begin(ctx, "a", "r", nil)
	unsubscribe()
	unsubscribe()
	_ = m.UpdateTokens(ctx, "b", "")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSubscribe_ListenerMayReadSession(t *testing.T) {
	ctx := context.Background()
	m, _ := Open(ctx, NewMemoryStore())

	var seen string
	m.Subscribe(func(Session) { seen = m.AccessToken() })
	_ = m.Begin(ctx, "a", "r", nil)

	if seen != "a" {
		t.Errorf("listener read %q, want a", seen)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	m, _ := Open(ctx, fs)
	if err := m.Begin(ctx, "a1", "r1", &user.Summary{ID: "u1", Username: "lifter"}); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("state file mode = %o, want 600", perm)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	m2, err := Open(ctx, reopened)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	s := m2.Current()
	if s.AccessToken != "a1" || s.RefreshToken != "r1" || s.User == nil || s.User.Username != "lifter" {
		t.Errorf("reloaded session = %+v", s)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("expected error for corrupt state file")
	}
}

func TestOpen_UnreadableUserIsDropped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, KeyAccessToken, "a")
	_ = store.Set(ctx, KeyUser, "{broken")

	m, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !m.IsLoggedIn() || m.Current().User != nil {
		t.Errorf("session = %+v", m.Current())
	}
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	store := NewRedisStoreFromClient(client, "gymbro_test")
	t.Cleanup(func() {
		_ = store.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser)
		store.Close()
	})

	m, _ := Open(ctx, store)
	if err := m.Begin(ctx, "a1", "r1", &user.Summary{ID: "u1"}); err != nil {
		t.Fatalf("Begin() error: %v", err)
	}

	raw, err := client.Get(ctx, "gymbro_test:accessToken").Result()
	if err != nil || raw != "a1" {
		t.Errorf("namespaced key = %q, %v", raw, err)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, KeyAccessToken); ok {
		t.Error("access token still stored after Clear")
	}
}

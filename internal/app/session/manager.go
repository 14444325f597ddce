package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gymbro/internal/app/user"
	"gymbro/internal/pkg/auth/jwt"
	"gymbro/internal/pkg/logx"
)

// Session is a snapshot of the authenticated state.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *user.Summary
}

// LoggedIn reports whether the snapshot carries an access token.
func (s Session) LoggedIn() bool {
	return s.AccessToken != ""
}

// Listener is invoked with the new snapshot after every mutation.
type Listener func(Session)

// Manager holds the session in memory, writes every change through to its Store and
// notifies subscribers. It is the only component that reads or writes the token keys.
type Manager struct {
	store Store

	mu      sync.RWMutex
	current Session

	subMu     sync.Mutex
	nextSubID int
	listeners map[int]Listener
}

// Open loads the persisted session from store.
// A stored user that fails to decode is dropped rather than failing the whole session.
func Open(ctx context.Context, store Store) (*Manager, error) {
	m := &Manager{
		store:     store,
		listeners: make(map[int]Listener),
	}

	access, _, err := store.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("session: load access token: %w", err)
	}
	refresh, _, err := store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("session: load refresh token: %w", err)
	}
	rawUser, hasUser, err := store.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("session: load user: %w", err)
	}

	m.current = Session{AccessToken: access, RefreshToken: refresh}

	if hasUser && rawUser != "" && rawUser != "null" {
		var u user.Summary
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			logx.Warn("Stored user is unreadable, ignoring it", "error", err.Error())
		} else {
			m.current.User = &u
		}
	}

	return m, nil
}

// Store exposes the backing store so sibling caches can persist their own keys.
func (m *Manager) Store() Store {
	return m.store
}

// Begin starts a new session after login, registration or an OAuth exchange.
func (m *Manager) Begin(ctx context.Context, access, refresh string, u *user.Summary) error {
	if access == "" {
		return fmt.Errorf("session: begin requires an access token")
	}

	next := Session{AccessToken: access, RefreshToken: refresh, User: u.Clone()}

	if err := m.store.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("session: persist access token: %w", err)
	}
	if refresh != "" {
		if err := m.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("session: persist refresh token: %w", err)
		}
	} else if err := m.store.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("session: drop refresh token: %w", err)
	}
	if err := m.persistUser(ctx, next.User); err != nil {
		return err
	}

	m.replace(next)
	return nil
}

// UpdateTokens replaces the token pair in place after a refresh.
// An empty refresh token keeps the current one.
func (m *Manager) UpdateTokens(ctx context.Context, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("session: refreshed access token is empty")
	}

	if err := m.store.Set(ctx, KeyAccessToken, access); err != nil {
		return fmt.Errorf("session: persist access token: %w", err)
	}
	if refresh != "" {
		if err := m.store.Set(ctx, KeyRefreshToken, refresh); err != nil {
			return fmt.Errorf("session: persist refresh token: %w", err)
		}
	}

	m.mu.Lock()
	next := m.current
	next.AccessToken = access
	if refresh != "" {
		next.RefreshToken = refresh
	}
	m.current = next
	m.mu.Unlock()

	m.notify(next.clone())
	return nil
}

// SetUser replaces the cached user wholesale.
func (m *Manager) SetUser(ctx context.Context, u *user.Summary) error {
	u = u.Clone()
	if err := m.persistUser(ctx, u); err != nil {
		return err
	}

	m.mu.Lock()
	next := m.current
	next.User = u
	m.current = next
	m.mu.Unlock()

	m.notify(next.clone())
	return nil
}

// Clear removes both tokens and the user. The in-memory session is cleared even when
// the store fails, so callers always end up logged out.
func (m *Manager) Clear(ctx context.Context) error {
	err := m.store.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser)

	m.mu.Lock()
	wasLoggedIn := m.current.LoggedIn() || m.current.RefreshToken != "" || m.current.User != nil
	m.current = Session{}
	m.mu.Unlock()

	if wasLoggedIn {
		m.notify(Session{})
	}

	if err != nil {
		return fmt.Errorf("session: clear store: %w", err)
	}
	return nil
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.clone()
}

// AccessToken returns the stored access token, or "".
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.AccessToken
}

// RefreshToken returns the stored refresh token, or "".
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.RefreshToken
}

// IsLoggedIn reports whether an access token is stored.
func (m *Manager) IsLoggedIn() bool {
	return m.AccessToken() != ""
}

// UserID returns the cached user's id, falling back to the identifier carried in the
// access token's claims.
func (m *Manager) UserID() string {
	s := m.Current()
	if s.User.Valid() {
		return s.User.ID
	}
	if s.AccessToken == "" {
		return ""
	}

	payload, err := jwt.Peek(s.AccessToken)
	if err != nil {
		return ""
	}
	return payload.UserIdentifier()
}

// Subscribe registers fn to be called after every session mutation and returns a
// function that removes it. Listeners run outside the session lock.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.listeners[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.listeners, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) replace(next Session) {
	m.mu.Lock()
	m.current = next
	m.mu.Unlock()

	m.notify(next.clone())
}

func (m *Manager) notify(s Session) {
	m.subMu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.subMu.Unlock()

	for _, fn := range listeners {
		fn(s.clone())
	}
}

func (m *Manager) persistUser(ctx context.Context, u *user.Summary) error {
	if u == nil {
		if err := m.store.Delete(ctx, KeyUser); err != nil {
			return fmt.Errorf("session: drop user: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	if err := m.store.Set(ctx, KeyUser, string(data)); err != nil {
		return fmt.Errorf("session: persist user: %w", err)
	}
	return nil
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}

package chat

import (
	"sort"
	"sync"
)

// PresenceMap maps online user ids to their connection id. It is rebuilt from every
// snapshot and patched by connect/disconnect events in arrival order; there is no
// ordering token, so the last event applied wins.
type PresenceMap struct {
	mu     sync.RWMutex
	online map[string]string
}

// NewPresenceMap returns an empty map.
func NewPresenceMap() *PresenceMap {
	return &PresenceMap{online: make(map[string]string)}
}

// Replace discards the current state and installs a full snapshot.
func (p *PresenceMap) Replace(users []OnlineUser) {
	next := make(map[string]string, len(users))
	for _, u := range users {
		next[u.UserID] = u.SocketID
	}

	p.mu.Lock()
	p.online = next
	p.mu.Unlock()
}

// Connected records userID as online on socketID.
func (p *PresenceMap) Connected(userID, socketID string) {
	p.mu.Lock()
	p.online[userID] = socketID
	p.mu.Unlock()
}

// Disconnected removes userID.
func (p *PresenceMap) Disconnected(userID string) {
	p.mu.Lock()
	delete(p.online, userID)
	p.mu.Unlock()
}

// IsOnline reports whether userID is online.
func (p *PresenceMap) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.online[userID]
	return ok
}

// Snapshot returns a copy of the map.
func (p *PresenceMap) Snapshot() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]string, len(p.online))
	for k, v := range p.online {
		out[k] = v
	}
	return out
}

// UserIDs returns the online user ids, sorted.
func (p *PresenceMap) UserIDs() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of online users.
func (p *PresenceMap) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.online)
}

// Clear empties the map.
func (p *PresenceMap) Clear() {
	p.mu.Lock()
	p.online = make(map[string]string)
	p.mu.Unlock()
}

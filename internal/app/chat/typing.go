package chat

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gymbro/internal/pkg/limiter"
)

const (
	// typingStartRate bounds typing:start emissions per chat.
	typingStartRate  = rate.Limit(1)
	typingStartBurst = 1
)

// TypingSet holds the (chat, user) pairs currently typing. Entries are added on
// typing:start and removed on typing:stop only; a dropped stop leaves the user typing.
type TypingSet struct {
	mu    sync.RWMutex
	chats map[string]map[string]struct{}
}

// NewTypingSet returns an empty set.
func NewTypingSet() *TypingSet {
	return &TypingSet{chats: make(map[string]map[string]struct{})}
}

// Start marks userID as typing in chatID.
func (t *TypingSet) Start(chatID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.chats[chatID]
	if !ok {
		users = make(map[string]struct{})
		t.chats[chatID] = users
	}
	users[userID] = struct{}{}
}

// Stop clears userID's typing flag in chatID.
func (t *TypingSet) Stop(chatID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.chats[chatID]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.chats, chatID)
	}
}

// IsTyping reports whether userID is typing in chatID.
func (t *TypingSet) IsTyping(chatID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.chats[chatID][userID]
	return ok
}

// Users returns the users typing in chatID, sorted.
func (t *TypingSet) Users(chatID string) []string {
	t.mu.RLock()
	users := make([]string, 0, len(t.chats[chatID]))
	for id := range t.chats[chatID] {
		users = append(users, id)
	}
	t.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Clear empties the set.
func (t *TypingSet) Clear() {
	t.mu.Lock()
	t.chats = make(map[string]map[string]struct{})
	t.mu.Unlock()
}

// typingEmitter drives our own typing indicator. The first keystroke of a burst emits
// typing:start (rate limited per chat); every keystroke re-arms a timer that emits
// typing:stop after the idle timeout.
type typingEmitter struct {
	timeout time.Duration
	emit    func(event, chatID string)
	limits  *limiter.KeyedLimiter

	mu     sync.Mutex
	bursts map[string]*time.Timer
}

func newTypingEmitter(timeout time.Duration, emit func(event, chatID string)) *typingEmitter {
	return &typingEmitter{
		timeout: timeout,
		emit:    emit,
		limits:  limiter.NewKeyedLimiter(typingStartRate, typingStartBurst),
		bursts:  make(map[string]*time.Timer),
	}
}

// keystroke records activity in chatID.
func (e *typingEmitter) keystroke(chatID string) {
	e.mu.Lock()
	timer, active := e.bursts[chatID]
	if active {
		timer.Stop()
		e.bursts[chatID] = e.newStopTimer(chatID)
		e.mu.Unlock()
		return
	}

	if !e.limits.Allow(chatID) {
		e.mu.Unlock()
		return
	}
	e.bursts[chatID] = e.newStopTimer(chatID)
	e.mu.Unlock()

	e.emit(EmitTypingStart, chatID)
}

// stop ends the burst in chatID immediately.
func (e *typingEmitter) stop(chatID string) {
	e.mu.Lock()
	timer, active := e.bursts[chatID]
	if !active {
		e.mu.Unlock()
		return
	}
	timer.Stop()
	delete(e.bursts, chatID)
	e.mu.Unlock()

	e.emit(EmitTypingStop, chatID)
}

// active reports whether a burst is open in chatID.
func (e *typingEmitter) active(chatID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.bursts[chatID]
	return ok
}

// reset drops every open burst without emitting.
func (e *typingEmitter) reset() {
	e.mu.Lock()
	for chatID, timer := range e.bursts {
		timer.Stop()
		delete(e.bursts, chatID)
	}
	e.mu.Unlock()
}

func (e *typingEmitter) close() {
	e.reset()
	e.limits.Stop()
}

// newStopTimer arms the idle timer for chatID. e.mu must be held.
func (e *typingEmitter) newStopTimer(chatID string) *time.Timer {
	var timer *time.Timer
	timer = time.AfterFunc(e.timeout, func() {
		e.mu.Lock()
		if e.bursts[chatID] != timer {
			e.mu.Unlock()
			return
		}
		delete(e.bursts, chatID)
		e.mu.Unlock()

		e.emit(EmitTypingStop, chatID)
	})
	return timer
}

package chat

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestTypingSet(t *testing.T) {
	ts := NewTypingSet()
	ts.Start("c1", "u2")
	ts.Start("c1", "u1")
	ts.Start("c2", "u2")

	if got := ts.Users("c1"); !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Errorf("Users(c1) = %v", got)
	}

	ts.Stop("c1", "u2")
	if ts.IsTyping("c1", "u2") {
		t.Error("u2 still typing in c1 after stop")
	}
	if !ts.IsTyping("c2", "u2") {
		t.Error("stop in c1 must not affect c2")
	}

	ts.Stop("c9", "nobody")
	ts.Clear()
	if len(ts.Users("c2")) != 0 {
		t.Error("Clear left entries behind")
	}
}

type recordedEmit struct {
	event  string
	chatID string
}

type emitRecorder struct {
	mu     sync.Mutex
	events []recordedEmit
}

func (r *emitRecorder) emit(event, chatID string) {
	r.mu.Lock()
	r.events = append(r.events, recordedEmit{event, chatID})
	r.mu.Unlock()
}

func (r *emitRecorder) snapshot() []recordedEmit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEmit(nil), r.events...)
}

func TestTypingEmitter_OneStartPerBurstThenIdleStop(t *testing.T) {
	rec := &emitRecorder{}
	e := newTypingEmitter(50*time.Millisecond, rec.emit)
	defer e.close()

	for i := 0; i < 5; i++ {
		e.keystroke("c1")
		time.Sleep(10 * time.Millisecond)
	}

	if got := rec.snapshot(); len(got) != 1 || got[0] != (recordedEmit{EmitTypingStart, "c1"}) {
		t.Fatalf("events during burst = %v", got)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	if got := rec.snapshot()[1]; got != (recordedEmit{EmitTypingStop, "c1"}) {
		t.Errorf("second event = %v, want typing:stop", got)
	}
	if e.active("c1") {
		t.Error("burst still active after idle stop")
	}
}

func TestTypingEmitter_ExplicitStop(t *testing.T) {
	rec := &emitRecorder{}
	e := newTypingEmitter(time.Hour, rec.emit)
	defer e.close()

	e.keystroke("c1")
	e.stop("c1")
	e.stop("c1")

	want := []recordedEmit{{EmitTypingStart, "c1"}, {EmitTypingStop, "c1"}}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestTypingEmitter_RateLimitsRestarts(t *testing.T) {
	rec := &emitRecorder{}
	e := newTypingEmitter(time.Hour, rec.emit)
	defer e.close()

	e.keystroke("c1")
	e.stop("c1")
	e.keystroke("c1")

	starts := 0
	for _, ev := range rec.snapshot() {
		if ev.event == EmitTypingStart {
			starts++
		}
	}
	if starts != 1 {
		t.Errorf("typing:start emitted %d times within one second, want 1", starts)
	}
	if e.active("c1") {
		t.Error("a rate-limited keystroke must not open a burst")
	}
}

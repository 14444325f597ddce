package chat

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gymbro/internal/app/api"
	"gymbro/internal/app/session"
	"gymbro/internal/pkg/auth/jwt"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
	"gymbro/internal/pkg/metrics"
)

const (
	// MaxMessageLength is the maximum content length of a chat message, in bytes.
	MaxMessageLength = 5000

	defaultReconnectDelay = 5 * time.Second
	defaultTypingTimeout  = 3 * time.Second
)

// RESTFallback is the part of the REST surface the transport relies on. *api.Client
// satisfies it.
type RESTFallback interface {
	SendMessage(ctx context.Context, chatID, content, tempID string) (*api.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	ListMessages(ctx context.Context, chatID, before string, limit int) (*api.MessagePage, error)
	RefreshSession(ctx context.Context) error
}

// Options configures a Transport.
type Options struct {
	// SocketURL is the ws(s) endpoint.
	SocketURL string

	// Session drives the connection lifecycle and identifies the current user.
	Session *session.Manager

	// REST carries messages when the socket is down and pages history.
	REST RESTFallback

	// ReconnectDelay is the fixed pause between connection attempts.
	ReconnectDelay time.Duration

	// TypingTimeout is the idle time after which typing:stop is emitted.
	TypingTimeout time.Duration

	// Dialer opens sockets. Nil uses a dialer with a handshake timeout.
	Dialer *websocket.Dialer
}

// loopHandle identifies one connection loop.
type loopHandle struct {
	cancel context.CancelFunc
}

// Transport keeps one authenticated socket open while a session exists and maintains
// the presence, typing and conversation state it feeds.
type Transport struct {
	opts   Options
	logger zerolog.Logger

	presence *PresenceMap
	typing   *TypingSet
	convs    *Conversations
	emitter  *typingEmitter

	// mu protects the fields below.
	mu        sync.Mutex
	baseCtx   context.Context
	loop      *loopHandle
	conn      *conn
	connToken string
	openChats map[string]struct{}
	closed    bool

	unsubscribe func()

	listenersMu  sync.RWMutex
	listeners    map[int]func(Event)
	nextListener int

	// wg tracks connection loops so Close can wait for them.
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTransport constructs a Transport. It does nothing until Start is called.
func NewTransport(opts Options) *Transport {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = defaultTypingTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}

	t := &Transport{
		opts:      opts,
		logger:    logx.Component("chat_transport"),
		presence:  NewPresenceMap(),
		typing:    NewTypingSet(),
		convs:     NewConversations(),
		openChats: make(map[string]struct{}),
		listeners: make(map[int]func(Event)),
	}
	t.emitter = newTypingEmitter(opts.TypingTimeout, t.emitTyping)

	return t
}

// Start subscribes to the session and connects when a user is signed in. Loops started
// by the transport end when ctx is canceled.
func (t *Transport) Start(ctx context.Context) {
	t.mu.Lock()
	t.baseCtx = ctx
	t.mu.Unlock()

	t.unsubscribe = t.opts.Session.Subscribe(t.onSession)
	t.onSession(t.opts.Session.Current())

	t.logger.Info().Str("socket_url", t.opts.SocketURL).Msg("Chat transport started.")
}

// onSession reacts to a session change. It never waits for a connection loop.
func (t *Transport) onSession(s session.Session) {
	if s.AccessToken == "" || t.opts.Session.UserID() == "" {
		if t.stopLoop() {
			t.logger.Info().Msg("Session ended, chat disconnected.")
		}
		t.presence.Clear()
		t.typing.Clear()
		t.emitter.reset()
		t.convs.Clear()
		return
	}

	t.mu.Lock()
	if t.closed || t.baseCtx == nil {
		t.mu.Unlock()
		return
	}

	if t.loop == nil {
		t.startLoopLocked()
		t.mu.Unlock()
		return
	}

	// The token rotated: drop the socket so the loop redials with the new one.
	c := t.conn
	stale := c != nil && t.connToken != s.AccessToken
	t.mu.Unlock()

	if stale {
		t.logger.Debug().Msg("Access token changed, reconnecting.")
		c.close()
	}
}

// startLoopLocked starts a connection loop. t.mu must be held.
func (t *Transport) startLoopLocked() {
	ctx, cancel := context.WithCancel(t.baseCtx)
	h := &loopHandle{cancel: cancel}
	t.loop = h

	t.wg.Add(1)
	go t.run(ctx, h)
}

// stopLoop cancels the running loop and closes its socket. It reports whether a loop
// was running.
func (t *Transport) stopLoop() bool {
	t.mu.Lock()
	h := t.loop
	c := t.conn
	t.loop = nil
	t.conn = nil
	t.connToken = ""
	t.mu.Unlock()

	if h != nil {
		h.cancel()
	}
	if c != nil {
		c.close()
	}
	return h != nil
}

// run dials, serves and redials until ctx is canceled or the session ends.
func (t *Transport) run(ctx context.Context, h *loopHandle) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		if t.loop == h {
			t.loop = nil
		}
		t.mu.Unlock()
		h.cancel()
	}()

	for ctx.Err() == nil {
		token := t.opts.Session.AccessToken()
		if token == "" {
			return
		}

		if jwt.ExpiresWithin(token, 0, time.Now()) {
			if err := t.opts.REST.RefreshSession(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("Token refresh before connect failed")
				if api.IsSessionEnded(err) {
					if clearErr := t.opts.Session.Clear(ctx); clearErr != nil {
						t.logger.Error().Err(clearErr).Msg("Failed to clear session")
					}
					return
				}
				if !t.wait(ctx) {
					return
				}
				continue
			}
			token = t.opts.Session.AccessToken()
		}

		c, err := dial(ctx, t.opts.Dialer, t.opts.SocketURL, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.SocketConnects.WithLabelValues("failure").Inc()
			t.logger.Warn().Err(err).Dur("retry_in", t.opts.ReconnectDelay).Msg("Chat connect failed")
			t.notify(ConnectError{Err: err})
			if !t.wait(ctx) {
				return
			}
			continue
		}

		if !t.serve(ctx, h, c, token) {
			return
		}
	}
}

// serve installs c as the live connection and blocks until it ends. It reports whether
// the loop should continue, pausing first when the connection failed on its own.
func (t *Transport) serve(ctx context.Context, h *loopHandle, c *conn, token string) bool {
	t.mu.Lock()
	if ctx.Err() != nil || t.loop != h {
		t.mu.Unlock()
		c.close()
		return false
	}
	t.conn = c
	t.connToken = token
	chats := t.openChatsLocked()
	t.mu.Unlock()

	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	metrics.SocketConnects.WithLabelValues("success").Inc()
	metrics.SocketConnected.Set(1)
	t.logger.Info().Int("open_chats", len(chats)).Msg("Chat connected.")
	t.notify(Connected{})

	for _, chatID := range chats {
		if err := t.emit(EmitChatJoin, chatRef{ChatID: chatID}); err != nil {
			t.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to rejoin chat")
		}
	}

	// The token may have rotated while we were dialing.
	if t.opts.Session.AccessToken() != token {
		c.close()
	}

	err := c.run(t.handleFrame)

	t.mu.Lock()
	if t.conn == c {
		t.conn = nil
		t.connToken = ""
	}
	t.mu.Unlock()

	metrics.SocketConnected.Set(0)
	t.logger.Info().AnErr("cause", err).Msg("Chat disconnected.")
	t.notify(Disconnected{Err: err})

	if ctx.Err() != nil {
		return false
	}
	if err == nil {
		// Closed on purpose; redial right away.
		return true
	}
	return t.wait(ctx)
}

// wait pauses for the reconnect delay. It returns false if ctx ended first.
func (t *Transport) wait(ctx context.Context) bool {
	timer := time.NewTimer(t.opts.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// handleFrame decodes one inbound frame, applies it to local state and then hands it
// to listeners.
func (t *Transport) handleFrame(frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		t.logger.Warn().Err(err).Int("frame_len", len(frame)).Msg("Dropping inbound frame")
		return
	}
	metrics.SocketEvents.WithLabelValues(ev.Name()).Inc()

	self := t.opts.Session.UserID()

	switch e := ev.(type) {
	case UsersOnline:
		t.presence.Replace(e.Users)

	case UserConnected:
		t.presence.Connected(e.UserID, e.SocketID)

	case UserDisconnected:
		t.presence.Disconnected(e.UserID)

	case TypingStarted:
		if e.UserID != self {
			t.typing.Start(e.ChatID, e.UserID)
		}

	case TypingStopped:
		t.typing.Stop(e.ChatID, e.UserID)

	case ChatMessage:
		if e.TempID != "" && e.Message.SenderID == self {
			t.convs.Confirm(e.Message, e.TempID, self)
		} else {
			t.convs.Receive(e.Message, self)
		}
		t.typing.Stop(e.Message.ChatID, e.Message.SenderID)

	case MessageSent:
		msg := e.Message
		if msg.SenderID == "" {
			msg.SenderID = self
		}
		t.convs.Confirm(msg, e.TempID, self)

	case NewMessage:
		t.convs.Receive(e.Message, self)

	case MessagesRead:
		t.convs.MarkReadBy(e.ChatID, e.UserID)
	}

	t.notify(ev)
}

// Send posts content to chatID. A placeholder is added at once; it is delivered over the
// socket when one is connected and through REST otherwise, never both. The returned
// message is the placeholder, or the confirmed message when REST was used.
func (t *Transport) Send(ctx context.Context, chatID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, errs.NewError(errs.ErrMessageEmpty)
	}
	if len(content) > MaxMessageLength {
		return Message{}, errs.NewError(errs.ErrMessageContentTooLong)
	}
	self := t.opts.Session.UserID()
	if self == "" {
		return Message{}, errs.NewError(errs.ErrLoginRequired)
	}

	placeholder := t.convs.AddPlaceholder(chatID, self, content)
	t.emitter.stop(chatID)

	if c := t.current(); c != nil {
		frame, err := Encode(EmitChatMessage, sendPayload{ChatID: chatID, Content: content, TempID: placeholder.TempID})
		if err == nil {
			err = c.enqueue(frame)
		}
		if err == nil {
			metrics.MessagesSent.WithLabelValues("socket").Inc()
			return placeholder, nil
		}
		t.logger.Warn().Err(err).Str("chat_id", chatID).Msg("Socket send failed, falling back to REST")
	}

	msg, err := t.opts.REST.SendMessage(ctx, chatID, content, placeholder.TempID)
	if err != nil {
		t.convs.MarkFailed(chatID, placeholder.TempID)
		placeholder.Status = StatusFailed
		return placeholder, err
	}
	metrics.MessagesSent.WithLabelValues("rest").Inc()

	if msg.SenderID == "" {
		msg.SenderID = self
	}
	t.convs.Confirm(*msg, placeholder.TempID, self)
	return Message{Message: *msg, Status: StatusSent}, nil
}

// Join marks chatID as open and joins its room. Open chats are rejoined after every reconnect.
func (t *Transport) Join(chatID string) {
	t.mu.Lock()
	t.openChats[chatID] = struct{}{}
	t.mu.Unlock()

	if err := t.emit(EmitChatJoin, chatRef{ChatID: chatID}); err != nil {
		t.logger.Debug().Err(err).Str("chat_id", chatID).Msg("Join deferred until connected")
	}
}

// Leave closes chatID.
func (t *Transport) Leave(chatID string) {
	t.mu.Lock()
	delete(t.openChats, chatID)
	t.mu.Unlock()

	t.emitter.stop(chatID)
	if err := t.emit(EmitChatLeave, chatRef{ChatID: chatID}); err != nil {
		t.logger.Debug().Err(err).Str("chat_id", chatID).Msg("Leave not sent")
	}
}

// LoadOlder fetches the page of history before the oldest loaded message and returns
// the messages that were added.
func (t *Transport) LoadOlder(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if t.convs.HistoryLoaded(chatID) && !t.convs.HasMore(chatID) {
		return nil, nil
	}

	page, err := t.opts.REST.ListMessages(ctx, chatID, t.convs.Cursor(chatID), limit)
	if err != nil {
		return nil, err
	}
	return t.convs.PrependHistory(chatID, page.Messages, page.HasMore), nil
}

// MarkRead marks chatID read through REST and over the socket. Both are always issued.
func (t *Transport) MarkRead(ctx context.Context, chatID string) error {
	restErr := t.opts.REST.MarkRead(ctx, chatID)

	if err := t.emit(EmitMarkMessagesRead, chatRef{ChatID: chatID}); err != nil {
		t.logger.Debug().Err(err).Str("chat_id", chatID).Msg("Read receipt not emitted")
	}

	if self := t.opts.Session.UserID(); self != "" {
		t.convs.MarkReadBy(chatID, self)
	}
	return restErr
}

// MarkMessageRead emits a read receipt for one message.
func (t *Transport) MarkMessageRead(chatID, messageID string) error {
	if err := t.emit(EmitMessageRead, messageReadPayload{ChatID: chatID, MessageID: messageID}); err != nil {
		return err
	}
	if self := t.opts.Session.UserID(); self != "" {
		t.convs.MarkMessageReadBy(chatID, messageID, self)
	}
	return nil
}

// Typing records a keystroke in chatID. Without a socket it does nothing.
func (t *Transport) Typing(chatID string) {
	if t.current() == nil {
		t.logger.Debug().Str("chat_id", chatID).Msg("Typing ignored while offline")
		return
	}
	t.emitter.keystroke(chatID)
}

// StopTyping ends our typing indicator in chatID immediately.
func (t *Transport) StopTyping(chatID string) {
	t.emitter.stop(chatID)
}

func (t *Transport) emitTyping(event, chatID string) {
	if err := t.emit(event, chatRef{ChatID: chatID}); err != nil {
		t.logger.Debug().Err(err).Str("event", event).Str("chat_id", chatID).Msg("Typing event dropped")
	}
}

// emit sends one event over the live socket.
func (t *Transport) emit(event string, payload any) error {
	c := t.current()
	if c == nil {
		return errs.NewError(errs.ErrSocketUnavailable)
	}
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func (t *Transport) current() *conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.conn.closed() {
		return nil
	}
	return t.conn
}

func (t *Transport) openChatsLocked() []string {
	chats := make([]string, 0, len(t.openChats))
	for id := range t.openChats {
		chats = append(chats, id)
	}
	sort.Strings(chats)
	return chats
}

// Connected reports whether the socket is up.
func (t *Transport) Connected() bool {
	return t.current() != nil
}

// Presence returns the presence state.
func (t *Transport) Presence() *PresenceMap {
	return t.presence
}

// IsOnline reports whether userID is online.
func (t *Transport) IsOnline(userID string) bool {
	return t.presence.IsOnline(userID)
}

// TypingUsers returns the users typing in chatID.
func (t *Transport) TypingUsers(chatID string) []string {
	return t.typing.Users(chatID)
}

// Messages returns chatID's messages, oldest first.
func (t *Transport) Messages(chatID string) []Message {
	return t.convs.Messages(chatID)
}

// HasMore reports whether older history may exist for chatID.
func (t *Transport) HasMore(chatID string) bool {
	return t.convs.HasMore(chatID)
}

// OpenChats returns the chats joined with Join, sorted.
func (t *Transport) OpenChats() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.openChatsLocked()
}

// Subscribe registers fn for every inbound and lifecycle event and returns a function
// that removes it. fn runs on the socket goroutine and must not block.
func (t *Transport) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.listenersMu.Lock()
	id := t.nextListener
	t.nextListener++
	t.listeners[id] = fn
	t.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.listenersMu.Lock()
			delete(t.listeners, id)
			t.listenersMu.Unlock()
		})
	}
}

func (t *Transport) notify(ev Event) {
	t.listenersMu.RLock()
	fns := make([]func(Event), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Close disconnects, stops following the session and waits for the connection loop to exit.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.logger.Info().Msg("Shutting down chat transport...")

		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		if t.unsubscribe != nil {
			t.unsubscribe()
		}
		t.stopLoop()
		t.wg.Wait()
		t.emitter.close()

		t.logger.Info().Msg("Chat transport shutdown complete.")
	})
}

package chat

import (
	"sort"
	"sync"
	"time"

	"gymbro/internal/app/api"
	"gymbro/internal/pkg/randx"
)

// MessageStatus is the delivery state of a message in a local conversation.
type MessageStatus string

const (
	// StatusSent marks a message the server has confirmed.
	StatusSent MessageStatus = "sent"

	// StatusPending marks an optimistic placeholder awaiting confirmation.
	StatusPending MessageStatus = "pending"

	// StatusFailed marks a placeholder whose delivery failed.
	StatusFailed MessageStatus = "failed"
)

// Message is a message as shown in a conversation.
type Message struct {
	api.Message
	Status MessageStatus `json:"status"`
}

// Pending reports whether the message is an unconfirmed placeholder.
func (m Message) Pending() bool {
	return m.Status == StatusPending
}

type conversation struct {
	// messages in display order, oldest first.
	messages []Message

	hasMore       bool
	historyLoaded bool
}

// Conversations holds the message lists of every chat the client has seen.
type Conversations struct {
	mu    sync.RWMutex
	chats map[string]*conversation
}

// NewConversations returns an empty store.
func NewConversations() *Conversations {
	return &Conversations{chats: make(map[string]*conversation)}
}

func (c *Conversations) getLocked(chatID string) *conversation {
	conv, ok := c.chats[chatID]
	if !ok {
		conv = &conversation{hasMore: true}
		c.chats[chatID] = conv
	}
	return conv
}

// AddPlaceholder appends an optimistic message tagged with a fresh temp id.
func (c *Conversations) AddPlaceholder(chatID, senderID, content string) Message {
	tempID := randx.TempMessageID()
	placeholder := Message{
		Message: api.Message{
			ID:        tempID,
			ChatID:    chatID,
			SenderID:  senderID,
			Content:   content,
			CreatedAt: time.Now(),
			TempID:    tempID,
		},
		Status: StatusPending,
	}

	c.mu.Lock()
	conv := c.getLocked(chatID)
	conv.messages = append(conv.messages, placeholder)
	c.mu.Unlock()

	return placeholder
}

// Confirm reconciles a server-confirmed message sent by selfID with its placeholder:
// first by temp id, then by content equality with the oldest pending placeholder of
// the chat. Each confirmation consumes at most one placeholder, so identical messages
// sent in quick succession stay distinct. When nothing matches, msg is treated as an
// ordinary inbound message. It reports whether a placeholder was replaced.
func (c *Conversations) Confirm(msg api.Message, tempID, selfID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.getLocked(msg.ChatID)

	if idx := conv.indexOfID(msg.ID); idx >= 0 {
		// Already confirmed through another path. Only a placeholder carrying the same temp
		// id belongs to it; a content match would be a different pending message.
		if i := conv.indexOfTempID(tempID); i >= 0 {
			conv.remove(i)
		}
		return false
	}

	i := conv.matchPlaceholder(tempID, msg, selfID)
	if i < 0 {
		conv.insert(Message{Message: msg, Status: StatusSent})
		return false
	}

	confirmed := Message{Message: msg, Status: StatusSent}
	if confirmed.TempID == "" {
		confirmed.TempID = conv.messages[i].TempID
	}
	conv.messages[i] = confirmed
	return true
}

// Receive adds an inbound message. Messages already present by server id are ignored.
// Our own messages echoed back are reconciled with their placeholder.
func (c *Conversations) Receive(msg api.Message, selfID string) bool {
	if selfID != "" && msg.SenderID == selfID {
		c.mu.RLock()
		conv, ok := c.chats[msg.ChatID]
		hasPending := ok && conv.hasPending()
		c.mu.RUnlock()

		if hasPending {
			return c.Confirm(msg, msg.TempID, selfID)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.getLocked(msg.ChatID)
	if conv.indexOfID(msg.ID) >= 0 {
		return false
	}
	conv.insert(Message{Message: msg, Status: StatusSent})
	return true
}

// MarkFailed flags the placeholder tempID as undelivered.
func (c *Conversations) MarkFailed(chatID, tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return
	}
	for i := range conv.messages {
		if conv.messages[i].Pending() && conv.messages[i].TempID == tempID {
			conv.messages[i].Status = StatusFailed
			return
		}
	}
}

// PrependHistory merges a page of older history into chatID's messages.
func (c *Conversations) PrependHistory(chatID string, older []api.Message, hasMore bool) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv := c.getLocked(chatID)
	added := make([]Message, 0, len(older))
	for _, m := range older {
		if m.ID == "" || conv.indexOfID(m.ID) >= 0 {
			continue
		}
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		added = append(added, Message{Message: m, Status: StatusSent})
	}

	merged := make([]Message, 0, len(added)+len(conv.messages))
	merged = append(merged, added...)
	merged = append(merged, conv.messages...)
	sortByTime(merged)

	conv.messages = merged
	conv.hasMore = hasMore
	conv.historyLoaded = true
	return added
}

// MarkReadBy records that readerID read every message of chatID it did not send.
func (c *Conversations) MarkReadBy(chatID, readerID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return 0
	}

	changed := 0
	for i := range conv.messages {
		m := &conv.messages[i]
		if m.SenderID == readerID || m.Pending() || m.ReadByUser(readerID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, readerID)
		changed++
	}
	return changed
}

// MarkMessageReadBy records that readerID read messageID.
func (c *Conversations) MarkMessageReadBy(chatID, messageID, readerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return false
	}
	idx := conv.indexOfID(messageID)
	if idx < 0 || conv.messages[idx].ReadByUser(readerID) {
		return false
	}
	conv.messages[idx].ReadBy = append(conv.messages[idx].ReadBy, readerID)
	return true
}

// Messages returns a copy of chatID's messages, oldest first.
func (c *Conversations) Messages(chatID string) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return nil
	}

	out := make([]Message, len(conv.messages))
	for i, m := range conv.messages {
		m.ReadBy = append([]string(nil), m.ReadBy...)
		out[i] = m
	}
	return out
}

// Cursor returns the id of the oldest confirmed message, the paging cursor for older history.
func (c *Conversations) Cursor(chatID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return ""
	}
	for _, m := range conv.messages {
		if m.Status == StatusSent && !randx.IsTempID(m.ID) {
			return m.ID
		}
	}
	return ""
}

// HasMore reports whether older history may exist for chatID.
func (c *Conversations) HasMore(chatID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.chats[chatID]
	if !ok {
		return true
	}
	return conv.hasMore
}

// HistoryLoaded reports whether at least one history page was loaded for chatID.
func (c *Conversations) HistoryLoaded(chatID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.chats[chatID]
	return ok && conv.historyLoaded
}

// Clear drops every conversation.
func (c *Conversations) Clear() {
	c.mu.Lock()
	c.chats = make(map[string]*conversation)
	c.mu.Unlock()
}

func (conv *conversation) indexOfID(id string) int {
	if id == "" {
		return -1
	}
	for i := range conv.messages {
		if conv.messages[i].ID == id && !conv.messages[i].Pending() {
			return i
		}
	}
	return -1
}

func (conv *conversation) hasPending() bool {
	for i := range conv.messages {
		if conv.messages[i].Pending() {
			return true
		}
	}
	return false
}

func (conv *conversation) indexOfTempID(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range conv.messages {
		if conv.messages[i].Pending() && conv.messages[i].TempID == tempID {
			return i
		}
	}
	return -1
}

// matchPlaceholder finds the placeholder msg confirms: by temp id, else the oldest
// pending placeholder from selfID with identical content.
func (conv *conversation) matchPlaceholder(tempID string, msg api.Message, selfID string) int {
	if i := conv.indexOfTempID(tempID); i >= 0 {
		return i
	}

	if selfID == "" || msg.SenderID != selfID {
		return -1
	}
	for i := range conv.messages {
		m := &conv.messages[i]
		if m.Pending() && m.SenderID == selfID && m.Content == msg.Content {
			return i
		}
	}
	return -1
}

// insert places m by creation time, after any message with an equal or earlier time.
func (conv *conversation) insert(m Message) {
	i := len(conv.messages)
	for i > 0 && conv.messages[i-1].CreatedAt.After(m.CreatedAt) && !m.CreatedAt.IsZero() {
		i--
	}
	conv.messages = append(conv.messages, Message{})
	copy(conv.messages[i+1:], conv.messages[i:])
	conv.messages[i] = m
}

func (conv *conversation) remove(i int) {
	conv.messages = append(conv.messages[:i], conv.messages[i+1:]...)
}

func sortByTime(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
}

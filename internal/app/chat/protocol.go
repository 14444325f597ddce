/*
Package chat contains the client side of GYMbro direct messaging: the socket connection,
the presence and typing state it maintains, and the per-chat message lists with their
optimistic placeholders.

This file defines the wire protocol. Every frame is a JSON envelope
{"event": <name>, "data": <payload>}. Inbound frames are decoded at the transport
boundary into one concrete Event type per event name; anything else is rejected.
*/
package chat

import (
	"bytes"
	"encoding/json"

	"gymbro/internal/app/api"
	"gymbro/internal/pkg/errs"
)

// Inbound event names.
const (
	EventUsersOnline      = "users:online"
	EventUserConnected    = "user:connected"
	EventUserDisconnected = "user:disconnected"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventChatMessage      = "chat:message"
	EventMessageSent      = "message sent"
	EventNewMessage       = "new message"
	EventMessagesRead     = "messages read"
)

// Local lifecycle event names. They never appear on the wire.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Outbound event names.
const (
	EmitChatJoin         = "chat:join"
	EmitChatLeave        = "chat:leave"
	EmitChatMessage      = "chat:message"
	EmitTypingStart      = "typing:start"
	EmitTypingStop       = "typing:stop"
	EmitMarkMessagesRead = "mark messages read"
	EmitMessageRead      = "message:read"
)

// Envelope is the frame wrapper.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded inbound or lifecycle event.
type Event interface {
	Name() string
}

// OnlineUser is one entry of a presence snapshot.
type OnlineUser struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

// UsersOnline is a full presence snapshot.
type UsersOnline struct {
	Users []OnlineUser `json:"users"`
}

// UserConnected patches presence with one new connection.
type UserConnected struct {
	UserID   string `json:"userId"`
	SocketID string `json:"socketId"`
}

// UserDisconnected removes one user from presence.
type UserDisconnected struct {
	UserID string `json:"userId"`
}

// TypingStarted reports that a user began typing in a chat.
type TypingStarted struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// TypingStopped reports that a user stopped typing in a chat.
type TypingStopped struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ChatMessage is a message broadcast to the chat room, including the sender's own.
type ChatMessage struct {
	Message api.Message `json:"message"`
	TempID  string      `json:"tempId,omitempty"`
}

// MessageSent confirms one of our own sends.
type MessageSent struct {
	TempID  string      `json:"tempId"`
	Message api.Message `json:"message"`
}

// NewMessage notifies about a message in a chat that may not be open.
type NewMessage struct {
	Message api.Message `json:"message"`
}

// MessagesRead reports that a user read a chat's messages.
type MessagesRead struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// Connected is emitted locally after the socket handshake succeeds.
type Connected struct{}

// Disconnected is emitted locally when an established socket drops.
type Disconnected struct {
	Err error
}

// ConnectError is emitted locally when a connection attempt fails.
type ConnectError struct {
	Err error
}

func (UsersOnline) Name() string      { return EventUsersOnline }
func (UserConnected) Name() string    { return EventUserConnected }
func (UserDisconnected) Name() string { return EventUserDisconnected }
func (TypingStarted) Name() string    { return EventTypingStart }
func (TypingStopped) Name() string    { return EventTypingStop }
func (ChatMessage) Name() string      { return EventChatMessage }
func (MessageSent) Name() string      { return EventMessageSent }
func (NewMessage) Name() string       { return EventNewMessage }
func (MessagesRead) Name() string     { return EventMessagesRead }
func (Connected) Name() string        { return EventConnect }
func (Disconnected) Name() string     { return EventDisconnect }
func (ConnectError) Name() string     { return EventConnectError }

// Outbound payloads.
type (
	chatRef struct {
		ChatID string `json:"chatId"`
	}

	sendPayload struct {
		ChatID  string `json:"chatId"`
		Content string `json:"content"`
		TempID  string `json:"tempId"`
	}

	messageReadPayload struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"messageId"`
	}
)

// Decode parses one inbound frame. It fails with ErrInvalidFrame when the frame or its
// payload is malformed or misses required fields, and with ErrUnknownEvent for event
// names outside the protocol.
func Decode(frame []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidFrame, err)
	}
	if env.Event == "" {
		return nil, errs.NewError(errs.ErrInvalidFrame)
	}

	switch env.Event {
	case EventUsersOnline:
		var ev UsersOnline
		if err := decodeData(env.Data, &ev); err != nil {
			// Some servers send the bare list.
			var users []OnlineUser
			if listErr := decodeData(env.Data, &users); listErr != nil {
				return nil, err
			}
			ev.Users = users
		}
		for _, u := range ev.Users {
			if u.UserID == "" {
				return nil, errs.NewError(errs.ErrInvalidFrame)
			}
		}
		return ev, nil

	case EventUserConnected:
		var ev UserConnected
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, require(ev.UserID)

	case EventUserDisconnected:
		var ev UserDisconnected
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, require(ev.UserID)

	case EventTypingStart:
		var ev TypingStarted
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, require(ev.ChatID, ev.UserID)

	case EventTypingStop:
		var ev TypingStopped
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, require(ev.ChatID, ev.UserID)

	case EventChatMessage:
		msg, tempID, err := decodeMessage(env.Data)
		if err != nil {
			return nil, err
		}
		return ChatMessage{Message: msg, TempID: tempID}, nil

	case EventMessageSent:
		msg, tempID, err := decodeMessage(env.Data)
		if err != nil {
			return nil, err
		}
		return MessageSent{Message: msg, TempID: tempID}, nil

	case EventNewMessage:
		msg, _, err := decodeMessage(env.Data)
		if err != nil {
			return nil, err
		}
		return NewMessage{Message: msg}, nil

	case EventMessagesRead:
		var ev MessagesRead
		if err := decodeData(env.Data, &ev); err != nil {
			return nil, err
		}
		return ev, require(ev.ChatID, ev.UserID)

	default:
		return nil, errs.NewError(errs.ErrUnknownEvent, env.Event)
	}
}

// Encode builds an outbound frame.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidFrame, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

func decodeData(data json.RawMessage, dst any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errs.NewError(errs.ErrInvalidFrame)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.Wrap(errs.ErrInvalidFrame, err)
	}
	return nil
}

// decodeMessage accepts {"message": {...}, "tempId": ...} as well as a bare message.
func decodeMessage(data json.RawMessage) (api.Message, string, error) {
	var wrapped struct {
		Message *api.Message `json:"message"`
		TempID  string       `json:"tempId"`
	}
	if err := decodeData(data, &wrapped); err != nil {
		return api.Message{}, "", err
	}

	msg := wrapped.Message
	if msg == nil {
		var bare api.Message
		if err := decodeData(data, &bare); err != nil {
			return api.Message{}, "", err
		}
		msg = &bare
	}

	tempID := wrapped.TempID
	if tempID == "" {
		tempID = msg.TempID
	}
	if msg.TempID == "" {
		msg.TempID = tempID
	}

	if msg.ID == "" || msg.ChatID == "" {
		return api.Message{}, "", errs.NewError(errs.ErrInvalidFrame)
	}
	return *msg, tempID, nil
}

func require(fields ...string) error {
	for _, f := range fields {
		if f == "" {
			return errs.NewError(errs.ErrInvalidFrame)
		}
	}
	return nil
}

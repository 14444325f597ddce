package chat

import (
	"encoding/json"
	"errors"
	"testing"

	"gymbro/internal/pkg/errs"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, ev Event)
	}{
		{
			name:  "presence snapshot",
			frame: `{"event":"users:online","data":{"users":[{"userId":"u1","socketId":"s1"},{"userId":"u2","socketId":"s2"}]}}`,
			check: func(t *testing.T, ev Event) {
				snap := ev.(UsersOnline)
				if len(snap.Users) != 2 || snap.Users[1].SocketID != "s2" {
					t.Errorf("users = %+v", snap.Users)
				}
			},
		},
		{
			name:  "bare presence list",
			frame: `{"event":"users:online","data":[{"userId":"u1","socketId":"s1"}]}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(UsersOnline).Users; len(got) != 1 || got[0].UserID != "u1" {
					t.Errorf("users = %+v", got)
				}
			},
		},
		{
			name:  "typing start",
			frame: `{"event":"typing:start","data":{"chatId":"c1","userId":"u2"}}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(TypingStarted); got.ChatID != "c1" || got.UserID != "u2" {
					t.Errorf("event = %+v", got)
				}
			},
		},
		{
			name:  "wrapped chat message with temp id",
			frame: `{"event":"chat:message","data":{"message":{"_id":"m1","chat":"c1","sender":{"_id":"u1"},"content":"hi"},"tempId":"temp-1"}}`,
			check: func(t *testing.T, ev Event) {
				msg := ev.(ChatMessage)
				if msg.TempID != "temp-1" || msg.Message.ID != "m1" || msg.Message.ChatID != "c1" || msg.Message.SenderID != "u1" {
					t.Errorf("event = %+v", msg)
				}
			},
		},
		{
			name:  "bare new message",
			frame: `{"event":"new message","data":{"id":"m2","chatId":"c9","senderId":"u3","content":"yo"}}`,
			check: func(t *testing.T, ev Event) {
				if got := ev.(NewMessage).Message; got.ID != "m2" || got.ChatID != "c9" {
					t.Errorf("message = %+v", got)
				}
			},
		},
		{
			name:  "message sent",
			frame: `{"event":"message sent","data":{"tempId":"temp-2","message":{"id":"m3","chatId":"c1","content":"x"}}}`,
			check: func(t *testing.T, ev Event) {
				sent := ev.(MessageSent)
				if sent.TempID != "temp-2" || sent.Message.TempID != "temp-2" {
					t.Errorf("event = %+v", sent)
				}
			},
		},
		{
			name:  "messages read",
			frame: `{"event":"messages read","data":{"chatId":"c1","userId":"u2"}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Name() != EventMessagesRead {
					t.Errorf("Name() = %q", ev.Name())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			tt.check(t, ev)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		code  int
	}{
		{"not json", `not json`, errs.ErrInvalidFrame},
		{"missing event", `{"data":{}}`, errs.ErrInvalidFrame},
		{"unknown event", `{"event":"room:nuke","data":{}}`, errs.ErrUnknownEvent},
		{"missing payload", `{"event":"user:connected"}`, errs.ErrInvalidFrame},
		{"missing user id", `{"event":"user:disconnected","data":{}}`, errs.ErrInvalidFrame},
		{"message without id", `{"event":"new message","data":{"message":{"chatId":"c1"}}}`, errs.ErrInvalidFrame},
		{"wrong payload type", `{"event":"typing:stop","data":"c1"}`, errs.ErrInvalidFrame},
		{"presence entry without user", `{"event":"users:online","data":{"users":[{"socketId":"s1"}]}}`, errs.ErrInvalidFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if !errors.Is(err, errs.NewError(tt.code)) {
				t.Errorf("Decode() error = %v, want code %d", err, tt.code)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	frame, err := Encode(EmitChatMessage, sendPayload{ChatID: "c1", Content: "hello", TempID: "temp-1"})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var got struct {
		Event string      `json:"event"`
		Data  sendPayload `json:"data"`
	}
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if got.Event != "chat:message" || got.Data.ChatID != "c1" || got.Data.TempID != "temp-1" {
		t.Errorf("frame = %s", frame)
	}
}

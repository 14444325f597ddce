package api

import (
	"encoding/json"
	"time"

	"gymbro/internal/app/user"
)

// TokenPair is the body of a successful refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by register, login and the Google exchange.
type AuthResult struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         *user.Summary `json:"user"`
}

// Comment is a comment on a post.
type Comment struct {
	ID        string       `json:"id"`
	Author    user.Summary `json:"user"`
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Post is a feed entry.
type Post struct {
	ID            string       `json:"id"`
	Author        user.Summary `json:"user"`
	Content       string       `json:"content"`
	Image         string       `json:"image,omitempty"`
	Likes         []string     `json:"likes,omitempty"`
	LikesCount    int          `json:"likesCount"`
	Liked         bool         `json:"liked"`
	CommentsCount int          `json:"commentsCount"`
	Comments      []Comment    `json:"comments,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Normalize fills the derived counters from the embedded lists when the server only
// sent the lists, and resolves Liked for viewerID.
func (p *Post) Normalize(viewerID string) {
	if p.LikesCount == 0 && len(p.Likes) > 0 {
		p.LikesCount = len(p.Likes)
	}
	if p.CommentsCount == 0 && len(p.Comments) > 0 {
		p.CommentsCount = len(p.Comments)
	}
	if !p.Liked && viewerID != "" {
		for _, id := range p.Likes {
			if id == viewerID {
				p.Liked = true
				break
			}
		}
	}
}

// UnmarshalJSON accepts "_id" as a fallback for the post id.
func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	var aux struct {
		plain
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*p = Post(aux.plain)
	if p.ID == "" {
		p.ID = aux.DocID
	}
	return nil
}

// PostPage is one page of the feed.
type PostPage struct {
	Posts   []Post `json:"posts"`
	Page    int    `json:"page"`
	HasMore bool   `json:"hasMore"`
}

// Profile is a user's public profile.
type Profile struct {
	user.Summary
	Bio       string `json:"bio,omitempty"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	Posts     []Post `json:"posts,omitempty"`
}

// UnmarshalJSON decodes the embedded summary (including its "_id" fallback) alongside
// the profile fields.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var summary user.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return err
	}

	var rest struct {
		Bio       string `json:"bio"`
		Followers int    `json:"followers"`
		Following int    `json:"following"`
		Posts     []Post `json:"posts"`
	}
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}

	*p = Profile{
		Summary:   summary,
		Bio:       rest.Bio,
		Followers: rest.Followers,
		Following: rest.Following,
		Posts:     rest.Posts,
	}
	return nil
}

// Advice kinds.
const (
	AdviceNutrition = "nutrition"
	AdviceWorkout   = "workout"
)

// AdviceRequest asks the AI advisor for a plan.
type AdviceRequest struct {
	Kind   string   `json:"type"`
	Prompt string   `json:"prompt"`
	Goals  []string `json:"goals,omitempty"`
}

// Advice is the advisor's answer.
type Advice struct {
	Kind    string `json:"type"`
	Content string `json:"advice"`
}

// Message is a chat message as the server stores it.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	ReadBy    []string  `json:"readBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// TempID echoes the placeholder id the message was sent with, when known.
	TempID string `json:"tempId,omitempty"`
}

// UnmarshalJSON accepts "_id" for the id, and "chat" and "sender" as either an id or
// a populated object.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		DocID  string          `json:"_id"`
		Chat   json.RawMessage `json:"chat"`
		Sender json.RawMessage `json:"sender"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*m = Message(aux.plain)
	if m.ID == "" {
		m.ID = aux.DocID
	}
	if m.ChatID == "" {
		m.ChatID = refID(aux.Chat)
	}
	if m.SenderID == "" {
		m.SenderID = refID(aux.Sender)
	}
	return nil
}

// refID resolves a reference that is either a bare id or an object with "id" or "_id".
func refID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}

	var doc struct {
		ID    string `json:"id"`
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	if doc.ID != "" {
		return doc.ID
	}
	return doc.DocID
}

// ReadByUser reports whether userID has read the message.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Chat is a direct conversation.
type Chat struct {
	ID           string         `json:"id"`
	Participants []user.Summary `json:"participants"`
	LastMessage  *Message       `json:"lastMessage,omitempty"`
	UnreadCount  int            `json:"unreadCount"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// UnmarshalJSON accepts "_id" as a fallback for the chat id.
func (c *Chat) UnmarshalJSON(data []byte) error {
	type plain Chat
	var aux struct {
		plain
		DocID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*c = Chat(aux.plain)
	if c.ID == "" {
		c.ID = aux.DocID
	}
	return nil
}

// Peer returns the first participant other than selfID.
func (c *Chat) Peer(selfID string) *user.Summary {
	for i := range c.Participants {
		if c.Participants[i].ID != selfID {
			return &c.Participants[i]
		}
	}
	return nil
}

// MessagePage is one page of chat history, oldest first.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

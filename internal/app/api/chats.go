package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/req"
	"gymbro/internal/pkg/resp"
)

// ListChats returns the caller's conversations.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	res, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/chats"})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Chats []Chat `json:"chats"`
	}
	if decodeErr := decodeList(res.Body, &wrapper, &wrapper.Chats); decodeErr != nil {
		return nil, decodeErr
	}
	return wrapper.Chats, nil
}

// OpenChatWith returns the conversation with userID, creating it if needed.
func (c *Client) OpenChatWith(ctx context.Context, userID string) (*Chat, error) {
	body, bodyErr := req.JSON(map[string]string{"userId": userID})
	if bodyErr != nil {
		return nil, bodyErr
	}

	res, err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/chats", Body: body})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Chat *Chat `json:"chat"`
	}
	if decodeErr := resp.Decode(res.Body, &wrapper); decodeErr == nil && wrapper.Chat != nil && wrapper.Chat.ID != "" {
		return wrapper.Chat, nil
	}

	var chat Chat
	if decodeErr := resp.Decode(res.Body, &chat); decodeErr != nil {
		return nil, decodeErr
	}
	if chat.ID == "" {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}
	return &chat, nil
}

// ListMessages returns up to limit messages of chatID older than the message before
// (or the newest ones when before is empty), oldest first.
func (c *Client) ListMessages(ctx context.Context, chatID, before string, limit int) (*MessagePage, error) {
	query := url.Values{}
	if before != "" {
		query.Set("before", before)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	res, err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/chats/" + url.PathEscape(chatID) + "/messages",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	page := &MessagePage{}
	if decodeErr := decodeList(res.Body, page, &page.Messages); decodeErr != nil {
		return nil, decodeErr
	}

	// A bare array carries no hasMore flag; a full page implies there may be more.
	if !page.HasMore && limit > 0 && len(page.Messages) >= limit && isBareArray(res.Body) {
		page.HasMore = true
	}
	for i := range page.Messages {
		if page.Messages[i].ChatID == "" {
			page.Messages[i].ChatID = chatID
		}
	}
	return page, nil
}

// SendMessage posts a chat message over REST. It is the fallback used when no socket
// is connected.
func (c *Client) SendMessage(ctx context.Context, chatID, content, tempID string) (*Message, error) {
	body, bodyErr := req.JSON(map[string]string{"content": content, "tempId": tempID})
	if bodyErr != nil {
		return nil, bodyErr
	}

	res, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/chats/" + url.PathEscape(chatID) + "/messages",
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Message *Message `json:"message"`
	}
	var msg Message
	if decodeErr := resp.Decode(res.Body, &wrapper); decodeErr == nil && wrapper.Message != nil && wrapper.Message.ID != "" {
		msg = *wrapper.Message
	} else if decodeErr := resp.Decode(res.Body, &msg); decodeErr != nil {
		return nil, decodeErr
	}
	if msg.ID == "" {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}

	if msg.ChatID == "" {
		msg.ChatID = chatID
	}
	if msg.TempID == "" {
		msg.TempID = tempID
	}
	return &msg, nil
}

// MarkRead marks every message of chatID as read by the caller.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodPut, Path: "/chats/" + url.PathEscape(chatID) + "/read"}, nil)
}

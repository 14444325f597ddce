package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/req"
	"gymbro/internal/pkg/resp"
)

// ListPosts returns one page of the feed, newest first.
func (c *Client) ListPosts(ctx context.Context, page, limit int) (*PostPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	res, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/posts", Query: query})
	if err != nil {
		return nil, err
	}

	out := &PostPage{Page: page}
	if decodeErr := decodeList(res.Body, out, &out.Posts); decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// CreatePost publishes a post. image may be nil.
func (c *Client) CreatePost(ctx context.Context, content string, image io.Reader, imageName string) (*Post, error) {
	body, bodyErr := req.Multipart(
		map[string]string{"content": content},
		req.File{Field: "image", Name: imageName, Reader: image},
	)
	if bodyErr != nil {
		return nil, bodyErr
	}

	var post Post
	if err := c.DoJSON(ctx, Request{Method: http.MethodPost, Path: "/posts", Body: body}, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes one of the caller's posts.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/posts/" + url.PathEscape(postID)}, nil)
}

// LikePost likes a post and returns the updated post.
func (c *Client) LikePost(ctx context.Context, postID string) (*Post, error) {
	return c.postMutation(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/like", nil)
}

// UnlikePost removes the caller's like and returns the updated post.
func (c *Client) UnlikePost(ctx context.Context, postID string) (*Post, error) {
	return c.postMutation(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID)+"/like", nil)
}

// AddComment comments on a post and returns the updated post.
func (c *Client) AddComment(ctx context.Context, postID, text string) (*Post, error) {
	body, bodyErr := req.JSON(map[string]string{"text": text})
	if bodyErr != nil {
		return nil, bodyErr
	}
	return c.postMutation(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", body)
}

// ListComments returns the comments of a post.
func (c *Client) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	res, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/posts/" + url.PathEscape(postID) + "/comments"})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Comments []Comment `json:"comments"`
	}
	if decodeErr := decodeList(res.Body, &wrapper, &wrapper.Comments); decodeErr != nil {
		return nil, decodeErr
	}
	return wrapper.Comments, nil
}

// postMutation issues a call whose response is the affected post, either bare or
// under a "post" member.
func (c *Client) postMutation(ctx context.Context, method, path string, body *req.Body) (*Post, error) {
	res, err := c.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Post *Post `json:"post"`
	}
	if decodeErr := resp.Decode(res.Body, &wrapper); decodeErr == nil && wrapper.Post != nil && wrapper.Post.ID != "" {
		return wrapper.Post, nil
	}

	var post Post
	if decodeErr := resp.Decode(res.Body, &post); decodeErr != nil {
		return nil, decodeErr
	}
	if post.ID == "" {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}
	return &post, nil
}

// decodeList decodes body into wrapper, or, when the server sent a bare array, into list.
func decodeList(body []byte, wrapper any, list any) *errs.CustomError {
	var probe json.RawMessage
	if decodeErr := resp.Decode(body, &probe); decodeErr != nil {
		return decodeErr
	}

	if len(probe) == 0 {
		return nil
	}
	if probe[0] == '[' {
		if err := json.Unmarshal(probe, list); err != nil {
			return errs.Wrap(errs.ErrInvalidResponse, err)
		}
		return nil
	}

	if err := json.Unmarshal(probe, wrapper); err != nil {
		return errs.Wrap(errs.ErrInvalidResponse, err)
	}
	return nil
}

// isBareArray reports whether the decoded payload of body is a JSON array.
func isBareArray(body []byte) bool {
	var probe json.RawMessage
	if decodeErr := resp.Decode(body, &probe); decodeErr != nil {
		return false
	}
	return len(probe) > 0 && probe[0] == '['
}

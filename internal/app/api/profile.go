package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"gymbro/internal/app/user"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/req"
	"gymbro/internal/pkg/resp"
)

// ProfileUpdate holds the editable profile fields. Empty strings and a nil Picture
// leave the corresponding field unchanged.
type ProfileUpdate struct {
	Username    string
	Bio         string
	Picture     io.Reader
	PictureName string
}

// GetProfile returns the public profile of userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/users/" + url.PathEscape(userID)}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile edits the caller's profile and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*user.Summary, error) {
	body, bodyErr := req.Multipart(
		map[string]string{"username": update.Username, "bio": update.Bio},
		req.File{Field: "profilePicture", Name: update.PictureName, Reader: update.Picture},
	)
	if bodyErr != nil {
		return nil, bodyErr
	}

	res, err := c.Do(ctx, Request{Method: http.MethodPut, Path: "/users/profile", Body: body})
	if err != nil {
		return nil, err
	}

	// The server answers with either {"user": {...}} or the bare user.
	var wrapper struct {
		User *user.Summary `json:"user"`
	}
	if decodeErr := resp.Decode(res.Body, &wrapper); decodeErr == nil && wrapper.User.Valid() {
		return wrapper.User, nil
	}

	var updated user.Summary
	if decodeErr := resp.Decode(res.Body, &updated); decodeErr != nil {
		return nil, decodeErr
	}
	if !updated.Valid() {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}
	return &updated, nil
}

package api

import (
	"context"
	"net/http"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/req"
)

// Credentials identify a user at login or registration.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", creds)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	result, err := c.authenticate(ctx, "/auth/login", creds)
	if err != nil && (errs.StatusOf(err) == http.StatusUnauthorized || errs.StatusOf(err) == http.StatusBadRequest) {
		return nil, errs.Wrap(errs.ErrInvalidCredentials, err)
	}
	return result, err
}

// GoogleLogin exchanges Google tokens for a GYMbro session.
func (c *Client) GoogleLogin(ctx context.Context, idToken, accessToken string) (*AuthResult, error) {
	payload := map[string]string{"token": idToken, "accessToken": accessToken}
	return c.authenticate(ctx, "/auth/google", payload)
}

// Logout tells the server to revoke the refresh token. Callers treat failure as non-fatal.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	body, bodyErr := req.JSON(map[string]string{"refreshToken": refreshToken})
	if bodyErr != nil {
		return bodyErr
	}

	return c.DoJSON(ctx, Request{
		Method:           http.MethodPost,
		Path:             "/auth/logout",
		Body:             body,
		SkipAuthRedirect: true,
	}, nil)
}

// Refresh exchanges refreshToken for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, bodyErr := req.JSON(map[string]string{"refreshToken": refreshToken})
	if bodyErr != nil {
		return nil, bodyErr
	}

	var pair TokenPair
	if err := c.DoJSON(ctx, Request{Method: http.MethodPost, Path: refreshPath, Body: body}, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}
	return &pair, nil
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (*AuthResult, error) {
	body, bodyErr := req.JSON(payload)
	if bodyErr != nil {
		return nil, bodyErr
	}

	var result AuthResult
	if err := c.DoJSON(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errs.NewError(errs.ErrInvalidResponse)
	}
	return &result, nil
}

/*
Package auth implements the login flows of the GYMbro client: email/password
registration and login, Google sign-in through the OAuth authorization-code flow,
logout, profile edits that replace the cached user, and the route guard that keeps
logged-out users on the public views.
*/
package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"gymbro/internal/app/api"
	"gymbro/internal/app/session"
	"gymbro/internal/app/user"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
)

// Service composes the REST client and the session manager.
type Service struct {
	client  *api.Client
	session *session.Manager

	oauth *oauth2.Config

	stateMu      sync.Mutex
	pendingState string
}

// NewService builds a Service. oauth may be nil when Google login is not configured.
func NewService(client *api.Client, sessions *session.Manager, oauth *oauth2.Config) *Service {
	return &Service{
		client:  client,
		session: sessions,
		oauth:   oauth,
	}
}

// Register creates an account and starts its session.
func (s *Service) Register(ctx context.Context, username, email, password string) (*user.Summary, error) {
	if strings.TrimSpace(username) == "" {
		return nil, errs.NewError(errs.ErrValidation, "username is required")
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	result, err := s.client.Register(ctx, api.Credentials{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, result)
}

// Login authenticates with email and password and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (*user.Summary, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	result, err := s.client.Login(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, result)
}

// Logout revokes the session on the server when possible and always clears it locally.
func (s *Service) Logout(ctx context.Context) error {
	if refresh := s.session.RefreshToken(); refresh != "" {
		if err := s.client.Logout(ctx, refresh); err != nil {
			logx.Warn("Server logout failed, clearing local session anyway", "error", err.Error())
		}
	}

	if err := s.session.Clear(ctx); err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	logx.Info("Logged out")
	return nil
}

// UpdateProfile edits the caller's profile and replaces the cached user with the result.
func (s *Service) UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*user.Summary, error) {
	if !s.session.IsLoggedIn() {
		return nil, errs.NewError(errs.ErrLoginRequired)
	}

	updated, err := s.client.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}

	if err := s.session.SetUser(ctx, updated); err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}
	return updated, nil
}

// CurrentUser returns the cached user, or nil when logged out.
func (s *Service) CurrentUser() *user.Summary {
	return s.session.Current().User
}

func (s *Service) begin(ctx context.Context, result *api.AuthResult) (*user.Summary, error) {
	if err := s.session.Begin(ctx, result.AccessToken, result.RefreshToken, result.User); err != nil {
		return nil, errs.Wrap(errs.ErrUnknown, err)
	}

	u := s.session.Current().User
	if u != nil {
		logx.Info("Session started", "user_id", u.ID, "username", u.Username)
	} else {
		logx.Info("Session started", "user_id", s.session.UserID())
	}
	return u, nil
}

func validateCredentials(email, password string) *errs.CustomError {
	if !strings.Contains(email, "@") {
		return errs.NewError(errs.ErrValidation, "a valid email is required")
	}
	if password == "" {
		return errs.NewError(errs.ErrValidation, "password is required")
	}
	return nil
}

package auth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"gymbro/internal/app/user"
	"gymbro/internal/configs"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
	"gymbro/internal/pkg/randx"
)

// GoogleConfig returns the OAuth configuration for Google sign-in, or nil when no
// client id is configured.
func GoogleConfig(cfg *configs.AppConfig) *oauth2.Config {
	if !cfg.GoogleEnabled() {
		return nil
	}

	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleAuthURL starts a Google sign-in and returns the consent page URL.
// Only the most recently issued state is accepted by CompleteGoogle.
func (s *Service) GoogleAuthURL() (string, error) {
	if s.oauth == nil {
		return "", errs.NewError(errs.ErrGoogleDisabled)
	}

	state, err := randx.OAuthState()
	if err != nil {
		return "", errs.Wrap(errs.ErrUnknown, err)
	}

	s.stateMu.Lock()
	s.pendingState = state
	s.stateMu.Unlock()

	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// CompleteGoogle finishes a Google sign-in: it checks state, exchanges code for
// Google tokens and trades them for a GYMbro session.
func (s *Service) CompleteGoogle(ctx context.Context, state, code string) (*user.Summary, error) {
	if s.oauth == nil {
		return nil, errs.NewError(errs.ErrGoogleDisabled)
	}

	s.stateMu.Lock()
	expected := s.pendingState
	s.pendingState = ""
	s.stateMu.Unlock()

	if expected == "" || state != expected {
		logx.Warn("OAuth state mismatch", "has_pending_state", expected != "")
		return nil, errs.NewError(errs.ErrOAuthStateMismatch)
	}
	if code == "" {
		return nil, errs.NewError(errs.ErrOAuthExchangeFailed)
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errs.Wrap(errs.ErrOAuthExchangeFailed, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" && token.AccessToken == "" {
		return nil, errs.NewError(errs.ErrOAuthExchangeFailed)
	}

	result, err := s.client.GoogleLogin(ctx, idToken, token.AccessToken)
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, result)
}

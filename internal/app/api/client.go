/*
Package api is the client side of the GYMbro REST surface.

Client wraps every outbound call: it attaches the bearer token held by the session
manager, and when a call comes back 401 or 403 it performs a single token refresh and
replays the call once with the new token. If the refresh fails the session is cleared
and the OnAuthFailure hook is told to send the user to the login view. Auth endpoints
never refresh and AI endpoints never redirect.

Concurrent requests that fail at the same time each run their own refresh; there is no
request queue behind an in-flight refresh.
*/
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gymbro/internal/app/session"
	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
	"gymbro/internal/pkg/metrics"
	"gymbro/internal/pkg/req"
	"gymbro/internal/pkg/resp"
)

const (
	// LoginRoute is where the user is sent after an irrecoverable auth failure.
	LoginRoute = "/login"

	authPrefix    = "/auth/"
	aiPrefix      = "/ai/"
	refreshPath   = "/auth/refresh-token"
	maxResponseMB = 10
)

// Request describes one REST call relative to the API base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   *req.Body

	// SkipAuthRedirect suppresses OnAuthFailure when the refresh fails.
	SkipAuthRedirect bool
}

// Response is the unmodified server response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// pendingRequest is a call held while a refresh is attempted. It is discarded after
// at most one replay.
type pendingRequest struct {
	Request
	retried bool
}

// Options configures a Client.
type Options struct {
	// BaseURL is the REST root, e.g. http://localhost:5000/api.
	BaseURL string

	// Session provides and receives tokens.
	Session *session.Manager

	// HTTPClient performs the calls. Nil uses a client with the logging transport.
	HTTPClient *http.Client

	// OnAuthFailure is called with the login route after a failed refresh.
	OnAuthFailure func(redirect string)
}

// Client is the REST client wrapper.
type Client struct {
	baseURL       string
	session       *session.Manager
	httpClient    *http.Client
	onAuthFailure func(redirect string)
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: logx.Transport(nil)}
	}

	onAuthFailure := opts.OnAuthFailure
	if onAuthFailure == nil {
		onAuthFailure = func(redirect string) {
			logx.Warn("Session ended, login required", "redirect", redirect)
		}
	}

	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		session:       opts.Session,
		httpClient:    httpClient,
		onAuthFailure: onAuthFailure,
	}
}

// Session returns the session manager the client reads tokens from.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Do issues r. A 2xx response is returned unmodified with a nil error. Any other status
// yields the response together with a *errs.CustomError describing it.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	pending := &pendingRequest{Request: r}

	token := c.session.AccessToken()
	if r.Path == refreshPath {
		token = ""
	}

	for {
		res, err := c.send(ctx, pending.Request, token)
		if err != nil {
			return nil, err
		}
		if isSuccess(res.Status) {
			return res, nil
		}

		originalErr := statusError(res)

		// A replayed request is never refreshed again.
		if !isAuthFailure(res.Status) || isAuthPath(r.Path) || pending.retried {
			return res, originalErr
		}

		refreshed, refreshErr := c.refresh(ctx)
		if refreshErr != nil {
			c.endSession(ctx, pending, refreshErr)
			return res, originalErr
		}

		pending.retried = true
		token = refreshed
	}
}

// DoJSON issues r and decodes a successful body into out (which may be nil).
func (c *Client) DoJSON(ctx context.Context, r Request, out any) error {
	res, err := c.Do(ctx, r)
	if err != nil {
		return err
	}

	if decodeErr := resp.Decode(res.Body, out); decodeErr != nil {
		return decodeErr
	}
	return nil
}

// refresh exchanges the stored refresh token for a new pair and stores it.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		metrics.RefreshTotal.WithLabelValues("failure").Inc()
		return "", errs.NewError(errs.ErrSessionExpired)
	}

	pair, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("failure").Inc()
		return "", err
	}

	if err := c.session.UpdateTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		metrics.RefreshTotal.WithLabelValues("failure").Inc()
		return "", errs.Wrap(errs.ErrSessionExpired, err)
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	logx.Debug("Access token refreshed")
	return pair.AccessToken, nil
}

// RefreshSession exchanges the stored refresh token for a new pair without issuing a
// request. The session is left untouched when the refresh fails.
func (c *Client) RefreshSession(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// endSession clears the session after a failed refresh and, unless suppressed or the
// call was an AI request, asks the UI to go to the login view.
func (c *Client) endSession(ctx context.Context, pending *pendingRequest, cause error) {
	logx.Warn("Token refresh failed, clearing session",
		"request_path", pending.Path,
		"error", cause.Error(),
	)

	if err := c.session.Clear(ctx); err != nil {
		logx.Error(err, "Failed to clear persisted session")
	}

	if pending.SkipAuthRedirect || isAIPath(pending.Path) {
		return
	}
	c.onAuthFailure(LoginRoute)
}

// send performs a single HTTP exchange. token may be empty, in which case no
// Authorization header is set.
func (c *Client) send(ctx context.Context, r Request, token string) (*Response, error) {
	target := c.baseURL + r.Path
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, r.Body.Reader())
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidRequest, err)
	}

	httpReq.Header.Set("Accept", req.ContentTypeJSON)
	if r.Body != nil && r.Body.ContentType != "" {
		httpReq.Header.Set("Content-Type", r.Body.ContentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpRes, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("network").Inc()
		return nil, errs.Wrap(errs.ErrNetwork, err)
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseMB<<20))
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("network").Inc()
		return nil, errs.Wrap(errs.ErrNetwork, err)
	}

	metrics.RequestsTotal.WithLabelValues(metrics.StatusClass(httpRes.StatusCode)).Inc()

	return &Response{
		Status: httpRes.StatusCode,
		Header: httpRes.Header,
		Body:   body,
	}, nil
}

func statusError(res *Response) *errs.CustomError {
	return errs.FromStatus(res.Status, resp.ErrorMessage(res.Body))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, authPrefix)
}

func isAIPath(path string) bool {
	return strings.HasPrefix(path, aiPrefix)
}

// IsSessionEnded reports whether err means the user must log in again.
func IsSessionEnded(err error) bool {
	return errors.Is(err, errs.NewError(errs.ErrSessionExpired)) ||
		errors.Is(err, errs.NewError(errs.ErrUnauthorized)) ||
		errors.Is(err, errs.NewError(errs.ErrForbidden))
}

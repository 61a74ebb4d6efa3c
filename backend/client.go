// Package backend is the HTTP client for the SpeakWise REST API endpoints the
// session layer depends on: login, token refresh, logout, registration and
// the signed-in user's profile.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 64 << 10

// Client talks to the SpeakWise REST backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API rooted at baseURL (e.g. "http://localhost:8000/api")
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    10 * time.Second,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for tokens at the role specific login endpoint.
// 400 and 401 answers are reported as ErrAuthenticationRejected.
func (c *Client) Login(ctx context.Context, role users.RoleType, email, password string) (*TokenResponse, error) {
	var resp TokenResponse
	path := fmt.Sprintf(RouteLoginFmt, role)
	err := c.postJSON(ctx, c.httpClient, path, loginRequest{Email: email, Password: password}, &resp, func(status int) error {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return autherrors.ErrAuthenticationRejected
		}
		return autherrors.ErrUnexpected
	})
	if err != nil {
		return nil, fmt.Errorf("[backend Login] %w", err)
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("[backend Login] %w: no access token in response", autherrors.ErrUnexpected)
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new access token. Any non-2xx
// answer is ErrRefreshExpired.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	err := c.postJSON(ctx, c.httpClient, RouteTokenRefresh, refreshRequest{Refresh: refreshToken}, &resp, func(int) error {
		return autherrors.ErrRefreshExpired
	})
	if err != nil {
		return "", fmt.Errorf("[backend Refresh] %w", err)
	}
	if resp.Access == "" {
		return "", fmt.Errorf("[backend Refresh] %w: no access token in response", autherrors.ErrRefreshExpired)
	}
	return resp.Access, nil
}

// Logout asks the backend to invalidate refreshToken. Callers treat failure as non-fatal.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	err := c.postJSON(ctx, c.httpClient, RouteLogout, logoutRequest{RefreshToken: refreshToken}, nil, func(int) error {
		return autherrors.ErrUnexpected
	})
	if err != nil {
		return fmt.Errorf("[backend Logout] %w", err)
	}
	return nil
}

// Register creates an account. A successful answer does not carry a
// session; any tokens in the body are ignored.
func (c *Client) Register(ctx context.Context, req users.RegistrationRequest) error {
	err := c.postJSON(ctx, c.httpClient, RouteRegister, req, nil, func(int) error {
		return autherrors.ErrRegistrationFailed
	})
	if err != nil {
		return fmt.Errorf("[backend Register] %w", err)
	}
	return nil
}

// Profile fetches the signed-in user. authorized must attach the bearer
// token, typically oauth2.NewClient over the session's token source.
func (c *Client) Profile(ctx context.Context, authorized *http.Client) (*users.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+RouteProfile, nil)
	if err != nil {
		return nil, fmt.Errorf("[backend Profile] %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var profile users.Summary
	if err := c.do(authorized, req, &profile, func(status int) error {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return autherrors.ErrNotAuthenticated
		}
		return autherrors.ErrUnexpected
	}); err != nil {
		return nil, fmt.Errorf("[backend Profile] %w", err)
	}
	return &profile, nil
}

func (c *Client) postJSON(ctx context.Context, httpClient *http.Client, path string, body, out any, kindFor func(status int) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrInvalidRequest, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(httpClient, req, out, kindFor)
}

func (c *Client) do(httpClient *http.Client, req *http.Request, out any, kindFor func(status int) error) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
			Kind:       kindFor(resp.StatusCode),
		}
		c.logger.Debug().
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("Backend rejected request")
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", autherrors.ErrUnexpected, err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body. It understands
// {"error": ...}, {"detail": ...} and field validation maps such as
// {"email": ["already registered"]}.
func errorMessage(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"error", "detail", "message"} {
		if msg := flatten(fields[key]); msg != "" {
			return msg
		}
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		if msg := flatten(fields[key]); msg != "" {
			parts = append(parts, key+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		data, _ := json.Marshal(t)
		return errorMessage(data)
	default:
		return ""
	}
}

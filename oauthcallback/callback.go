// Package oauthcallback consumes the redirect an identity provider sends the
// user back with. It persists the tokens found in the query, works out
// whether the user still has to complete a profile and tells the caller
// where to send them next. The next full load of the session picks the
// stored credentials up.
package oauthcallback

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jrsteele09/speakwise-web/credentials"
	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/internal/metrics"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultDelay is how long the outcome message stays up before navigating
const DefaultDelay = 2 * time.Second

// Outcome is the terminal state of a callback
type Outcome int

const (
	OutcomeNewUser Outcome = iota
	OutcomeReturningUser
	OutcomeDenied
	OutcomeIncomplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNewUser:
		return "new_user"
	case OutcomeReturningUser:
		return "returning_user"
	case OutcomeDenied:
		return "denied"
	case OutcomeIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// Params are the query parameters of the redirect
type Params struct {
	AccessToken      string
	RefreshToken     string
	User             string
	IDToken          string
	Error            string
	ErrorDescription string
}

// ParamsFromQuery reads Params from q, accepting the short access/refresh aliases.
func ParamsFromQuery(q url.Values) Params {
	return Params{
		AccessToken:      firstNonEmpty(q.Get("access_token"), q.Get("access")),
		RefreshToken:     firstNonEmpty(q.Get("refresh_token"), q.Get("refresh")),
		User:             q.Get("user"),
		IDToken:          q.Get("id_token"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Result is what the user is shown and where they go afterwards
type Result struct {
	Outcome  Outcome
	Message  string
	User     *users.Summary
	Err      error
	Redirect session.Navigation
	Delay    time.Duration
}

// Failed reports whether the callback ended on the sign-in page.
func (r Result) Failed() bool {
	return r.Outcome == OutcomeDenied || r.Outcome == OutcomeIncomplete
}

// CredentialStore is where a successful callback writes the tokens. The
// previous session's record is replaced as a whole.
type CredentialStore interface {
	Replace(rec credentials.Record)
}

// Handler turns callback parameters into a Result
type Handler struct {
	store    CredentialStore
	verifier IDTokenVerifier
	delay    time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Handler)

// WithVerifier enables id_token verification
func WithVerifier(v IDTokenVerifier) Option {
	return func(h *Handler) {
		h.verifier = v
	}
}

func WithDelay(d time.Duration) Option {
	return func(h *Handler) {
		h.delay = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func NewHandler(store CredentialStore, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		delay:  DefaultDelay,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Callback is a single redirect. Run does its work only once no matter how
// often it is called.
type Callback struct {
	handler *Handler
	params  Params
	once    sync.Once
	result  Result
}

func (h *Handler) NewCallback(p Params) *Callback {
	return &Callback{handler: h, params: p}
}

// Run handles the redirect on the first call and returns the same Result on every call.
func (c *Callback) Run(ctx context.Context) Result {
	c.once.Do(func() {
		c.result = c.handler.Handle(ctx, c.params)
	})
	return c.result
}

// Handle processes p. Prefer Callback.Run, which guards against a redirect
// being consumed twice.
func (h *Handler) Handle(ctx context.Context, p Params) Result {
	result := h.handle(ctx, p)
	result.Delay = h.delay
	result.Redirect.FullReload = true
	h.metrics.OAuthCallback(result.Outcome.String())
	return result
}

func (h *Handler) handle(ctx context.Context, p Params) Result {
	if p.Error != "" {
		reason := firstNonEmpty(p.ErrorDescription, p.Error)
		h.logger.Warn().Str("error", p.Error).Str("description", p.ErrorDescription).Msg("OAuth provider returned an error")
		return Result{
			Outcome:  OutcomeDenied,
			Message:  fmt.Sprintf("Sign-in failed: %s. Redirecting to sign in...", reason),
			Err:      autherrors.Wrapf(autherrors.ErrOAuthDenied, "[oauthcallback] %s", reason),
			Redirect: session.Navigation{Path: session.SignInURL("error", p.Error)},
		}
	}

	if p.AccessToken == "" {
		h.logger.Warn().Msg("OAuth callback carried no access token")
		return Result{
			Outcome:  OutcomeIncomplete,
			Message:  "Sign-in did not complete. Redirecting to sign in...",
			Err:      autherrors.Wrapf(autherrors.ErrOAuthIncomplete, "[oauthcallback] missing access token"),
			Redirect: session.Navigation{Path: session.SignInURL("error", "missing_token")},
		}
	}

	var verified *users.Summary
	if h.verifier != nil && p.IDToken != "" {
		var err error
		verified, err = h.verifier.Verify(ctx, p.IDToken)
		if err != nil {
			h.logger.Warn().Err(err).Msg("OAuth id_token rejected")
			return Result{
				Outcome:  OutcomeDenied,
				Message:  "Sign-in could not be verified. Redirecting to sign in...",
				Err:      err,
				Redirect: session.Navigation{Path: session.SignInURL("error", "invalid_id_token")},
			}
		}
	}

	var user *users.Summary
	if p.User != "" {
		parsed, err := ParseUser(p.User)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Ignoring unparseable OAuth user parameter")
		} else {
			user = parsed
		}
	}
	if user == nil {
		user = verified
	}

	h.store.Replace(credentials.Record{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, User: user})

	if user.IsNewUser() {
		h.logger.Info().Msg("OAuth sign-in for a new user")
		return Result{
			Outcome:  OutcomeNewUser,
			Message:  "Welcome aboard! Let's finish setting up your profile.",
			User:     user,
			Redirect: session.Navigation{Path: session.RouteProfileComplete},
		}
	}

	h.logger.Info().Str("user_id", string(user.ID)).Msg("OAuth sign-in for a returning user")
	return Result{
		Outcome:  OutcomeReturningUser,
		Message:  fmt.Sprintf("Welcome back, %s!", user.DisplayName()),
		User:     user,
		Redirect: session.Navigation{Path: session.RouteHome},
	}
}

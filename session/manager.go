// Package session owns the authentication state of a running SpeakWise
// front end. A Manager resolves the initial state from the credential store
// once per load, performs login, registration and logout, keeps the refresh
// scheduler in step, and publishes every state change to subscribers.
package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/speakwise-web/backend"
	"github.com/jrsteele09/speakwise-web/credentials"
	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/internal/metrics"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Backend is the subset of the REST API the Manager calls
type Backend interface {
	Login(ctx context.Context, role users.RoleType, email, password string) (*backend.TokenResponse, error)
	Register(ctx context.Context, req users.RegistrationRequest) error
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, authorized *http.Client) (*users.Summary, error)
}

// Scheduler is the refresh timer driven by the Manager
type Scheduler interface {
	Start()
	Stop()
	OnExpired(fn func(err error))
}

// CredentialStore is the persisted side of the session
type CredentialStore interface {
	Load() credentials.Record
	Save(rec credentials.Record)
	Clear()
	HasValidSession() bool
}

// Manager is the session of one running application. Create one per
// composition root; there is no package level instance.
type Manager struct {
	mu           sync.Mutex
	state        State
	booted       bool
	generation   uint64
	redirectHint string
	subscribers  map[int]func(State)
	nextSubID    int
	onNavigate   func(Navigation)

	store     CredentialStore
	backend   Backend
	scheduler Scheduler
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

var _ oauth2.TokenSource = (*Manager)(nil)

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager wires a Manager to its store, backend and scheduler. The
// Manager registers itself as the scheduler's expiry hook.
func NewManager(store CredentialStore, api Backend, scheduler Scheduler, opts ...Option) *Manager {
	m := &Manager{
		state:       State{Status: StatusUnknown},
		subscribers: make(map[int]func(State)),
		store:       store,
		backend:     api,
		scheduler:   scheduler,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	scheduler.OnExpired(m.handleExpired)
	return m
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that changed the state, without Manager locks held.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// OnNavigate registers the hook used when the session itself needs to move
// the user, which only happens when a background refresh fails.
func (m *Manager) OnNavigate(fn func(Navigation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNavigate = fn
}

// Bootstrap resolves the initial state from the credential store. Only the
// first call per load does anything; later calls return immediately.
func (m *Manager) Bootstrap() {
	m.mu.Lock()
	if m.booted {
		m.mu.Unlock()
		return
	}
	m.booted = true
	gen := m.generation
	m.state = State{Status: StatusLoading}
	loading := m.state
	m.mu.Unlock()
	m.publish(loading)

	// Trust on presence: the stored token is not re-validated here, the
	// refresh schedule does that.
	hasSession := m.store.HasValidSession()
	var user *users.Summary
	if hasSession {
		user = m.store.Load().User
	}

	m.mu.Lock()
	if gen != m.generation {
		// A login or logout resolved the state while we were reading.
		m.mu.Unlock()
		return
	}
	if hasSession {
		m.state = State{Status: StatusAuthenticated, User: user, SessionID: uuid.NewString()}
		m.scheduler.Start()
	} else {
		m.state = State{Status: StatusUnauthenticated}
	}
	resolved := m.state
	m.mu.Unlock()

	m.logger.Info().
		Stringer("status", resolved.Status).
		Str("session_id", resolved.SessionID).
		Msg("Session bootstrapped")
	m.publish(resolved)
}

// Reload is the equivalent of a full page load: the scheduler is stopped,
// the bootstrap guard reset, and the state resolved again from the store.
func (m *Manager) Reload() {
	m.mu.Lock()
	m.scheduler.Stop()
	m.generation++
	m.booted = false
	m.mu.Unlock()

	m.Bootstrap()
}

// RememberRedirect stores the path the user tried to reach; the next
// successful Login returns it instead of the role dashboard.
func (m *Manager) RememberRedirect(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirectHint = path
}

// Login authenticates against the backend for role. On success the tokens
// and user are persisted, the refresh schedule restarted and the
// post-login destination returned. On failure nothing changes and the
// backend error is returned for the caller to display.
func (m *Manager) Login(ctx context.Context, email, password string, role users.RoleType) (Navigation, error) {
	m.mu.Lock()
	gen := m.generation
	m.mu.Unlock()

	resp, err := m.backend.Login(ctx, role, email, password)
	if err != nil {
		m.metrics.Login(string(role), "failure")
		m.logger.Info().Err(err).Str("role", string(role)).Msg("Login failed")
		return Navigation{}, autherrors.Wrapf(err, "[session Login]")
	}

	user := resp.User
	if user == nil {
		user = &users.Summary{Email: email, Role: role}
	} else if user.Role == "" {
		withRole := *user
		withRole.Role = role
		user = &withRole
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		m.metrics.Login(string(role), "superseded")
		return Navigation{}, autherrors.Wrapf(autherrors.ErrSessionSuperseded, "[session Login]")
	}
	m.generation++
	m.booted = true
	m.scheduler.Stop()
	m.store.Clear()
	m.store.Save(credentials.Record{AccessToken: resp.Access, RefreshToken: resp.Refresh, User: user})
	m.state = State{Status: StatusAuthenticated, User: user, SessionID: uuid.NewString()}
	m.scheduler.Start()

	target := DashboardFor(user.Role)
	if m.redirectHint != "" {
		target = m.redirectHint
		m.redirectHint = ""
	}
	st := m.state
	m.mu.Unlock()

	m.metrics.Login(string(role), "success")
	m.logger.Info().Str("session_id", st.SessionID).Str("role", string(user.Role)).Msg("Login succeeded")
	m.publish(st)
	return Navigation{Path: target}, nil
}

// Register creates an account. The session is not changed: even if the
// backend returned tokens, the caller has to Login with the same credentials.
func (m *Manager) Register(ctx context.Context, req users.RegistrationRequest) error {
	if err := req.Validate(); err != nil {
		m.metrics.Registration("invalid")
		return &backend.APIError{Message: err.Error(), Kind: autherrors.ErrRegistrationFailed}
	}
	if err := m.backend.Register(ctx, req); err != nil {
		m.metrics.Registration("failure")
		m.logger.Info().Err(err).Msg("Registration failed")
		return autherrors.Wrapf(err, "[session Register]")
	}
	m.metrics.Registration("success")
	return nil
}

// Logout ends the session. The backend is asked to invalidate the refresh
// token but its failure is only logged; local credentials are always
// cleared and the scheduler stopped before the sign-in navigation is returned.
func (m *Manager) Logout(ctx context.Context) Navigation {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.scheduler.Stop()
	refreshToken := m.store.Load().RefreshToken
	sessionID := m.state.SessionID
	m.mu.Unlock()

	if refreshToken != "" {
		if err := m.backend.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Backend logout failed, clearing local session anyway")
		}
	}

	m.mu.Lock()
	if gen != m.generation {
		// A newer login owns the store now.
		m.mu.Unlock()
		return Navigation{Path: RouteSignIn}
	}
	m.store.Clear()
	m.booted = true
	m.redirectHint = ""
	m.state = State{Status: StatusUnauthenticated}
	st := m.state
	m.mu.Unlock()

	m.metrics.Logout()
	m.logger.Info().Str("session_id", sessionID).Msg("Logged out")
	m.publish(st)
	return Navigation{Path: RouteSignIn}
}

// Replace swaps the stored credentials for rec, for sign-ins completed
// outside Login such as an OAuth callback. The refresh schedule is stopped
// first so a refresh still in flight for the old tokens is discarded. The
// published state is left alone until the next Reload.
func (m *Manager) Replace(rec credentials.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.scheduler.Stop()
	m.store.Clear()
	m.store.Save(rec)
}

// Token implements oauth2.TokenSource with the stored access token.
func (m *Manager) Token() (*oauth2.Token, error) {
	rec := m.store.Load()
	if rec.AccessToken == "" {
		return nil, autherrors.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: rec.AccessToken, TokenType: "Bearer"}, nil
}

// HTTPClient returns a client that sends the current access token with
// every request. The token is read per request, so scheduled refreshes
// are picked up.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: m,
			Base:   oauth2.NewClient(ctx, nil).Transport,
		},
	}
}

// RefreshProfile replaces the cached user with the backend's profile.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	m.mu.Lock()
	gen := m.generation
	authenticated := m.state.IsAuthenticated()
	m.mu.Unlock()
	if !authenticated {
		return autherrors.ErrNotAuthenticated
	}

	profile, err := m.backend.Profile(ctx, m.HTTPClient(ctx))
	if err != nil {
		return autherrors.Wrapf(err, "[session RefreshProfile]")
	}

	m.mu.Lock()
	if gen != m.generation || !m.state.IsAuthenticated() {
		m.mu.Unlock()
		return autherrors.Wrapf(autherrors.ErrSessionSuperseded, "[session RefreshProfile]")
	}
	if profile.Role == "" && m.state.User != nil {
		profile.Role = m.state.User.Role
	}
	m.store.Save(credentials.Record{User: profile})
	m.state.User = profile
	st := m.state
	m.mu.Unlock()

	m.publish(st)
	return nil
}

// handleExpired is the scheduler hook: the store has already been cleared.
func (m *Manager) handleExpired(err error) {
	if m.store.HasValidSession() {
		// A login replaced the credentials after the failed refresh cleared them.
		return
	}

	m.mu.Lock()
	m.generation++
	sessionID := m.state.SessionID
	m.state = State{Status: StatusUnauthenticated, Expired: true}
	st := m.state
	navigate := m.onNavigate
	m.mu.Unlock()

	m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Session expired")
	m.publish(st)
	if navigate != nil {
		navigate(Navigation{Path: SessionExpiredURL})
	}
}

func (m *Manager) publish(st State) {
	m.metrics.SetAuthenticated(st.IsAuthenticated())

	m.mu.Lock()
	subs := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/speakwise-web/backend"
	"github.com/jrsteele09/speakwise-web/credentials"
	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/oauthcallback"
	"github.com/jrsteele09/speakwise-web/refresh"
	"github.com/jrsteele09/speakwise-web/session"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "a@b.com"
	testPassword = "secret"
)

// fakeBackend implements session.Backend and refresh.Refresher
type fakeBackend struct {
	mu            sync.Mutex
	loginFn       func(ctx context.Context, role users.RoleType, email, password string) (*backend.TokenResponse, error)
	registerFn    func(req users.RegistrationRequest) error
	refreshFn     func(refreshToken string) (string, error)
	profileFn     func(ctx context.Context, authorized *http.Client) (*users.Summary, error)
	logoutErr     error
	loginCalls    int
	logoutTokens  []string
	registerCalls int
}

func (b *fakeBackend) Login(ctx context.Context, role users.RoleType, email, password string) (*backend.TokenResponse, error) {
	b.mu.Lock()
	b.loginCalls++
	b.mu.Unlock()
	return b.loginFn(ctx, role, email, password)
}

func (b *fakeBackend) Register(_ context.Context, req users.RegistrationRequest) error {
	b.registerCalls++
	return b.registerFn(req)
}

func (b *fakeBackend) Logout(_ context.Context, refreshToken string) error {
	b.logoutTokens = append(b.logoutTokens, refreshToken)
	return b.logoutErr
}

func (b *fakeBackend) Profile(ctx context.Context, authorized *http.Client) (*users.Summary, error) {
	return b.profileFn(ctx, authorized)
}

func (b *fakeBackend) Refresh(_ context.Context, refreshToken string) (string, error) {
	return b.refreshFn(refreshToken)
}

// fakeClock hands out manually fired timers
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) refresh.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

func (c *fakeClock) live() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	return live
}

func (c *fakeClock) fireOnly(t *testing.T) {
	t.Helper()
	live := c.live()
	require.Len(t, live, 1)
	c.mu.Lock()
	live[0].fired = true
	c.mu.Unlock()
	live[0].f()
}

type testFixture struct {
	backend    *fakeBackend
	clock      *fakeClock
	store      *credentials.Store
	scheduler  *refresh.Scheduler
	manager    *session.Manager
	published  []session.State
	navigation []session.Navigation
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		backend: &fakeBackend{
			loginFn: func(_ context.Context, role users.RoleType, email, password string) (*backend.TokenResponse, error) {
				if password != testPassword {
					return nil, &backend.APIError{StatusCode: http.StatusUnauthorized, Kind: autherrors.ErrAuthenticationRejected}
				}
				return &backend.TokenResponse{
					Access:  "AT1",
					Refresh: "RT1",
					User:    &users.Summary{ID: "1", FirstName: "", Email: email, Role: role},
				}, nil
			},
			registerFn: func(users.RegistrationRequest) error { return nil },
			refreshFn:  func(string) (string, error) { return "AT2", nil },
		},
		clock: &fakeClock{},
		store: credentials.NewStore(credentials.NewMemoryStorage(), credentials.WithLogger(zerolog.Nop())),
	}
	f.scheduler = refresh.New(f.store, f.backend,
		refresh.WithAfterFunc(f.clock.AfterFunc),
		refresh.WithLogger(zerolog.Nop()),
	)
	f.manager = session.NewManager(f.store, f.backend, f.scheduler, session.WithLogger(zerolog.Nop()))
	f.manager.Subscribe(func(st session.State) {
		f.published = append(f.published, st)
		f.requireInvariant(t, st)
	})
	f.manager.OnNavigate(func(nav session.Navigation) { f.navigation = append(f.navigation, nav) })
	return f
}

// requireInvariant checks that an authenticated state always has an access token stored
func (f *testFixture) requireInvariant(t *testing.T, st session.State) {
	t.Helper()
	if st.Status == session.StatusAuthenticated {
		require.NotEmpty(t, f.store.Load().AccessToken, "authenticated without an access token")
	}
}

func (f *testFixture) statuses() []session.Status {
	out := make([]session.Status, 0, len(f.published))
	for _, st := range f.published {
		out = append(out, st.Status)
	}
	return out
}

// TestBootstrap_FreshStore tests that a store without credentials resolves to unauthenticated
func TestBootstrap_FreshStore(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, session.StatusUnknown, f.manager.State().Status)

	f.manager.Bootstrap()

	require.Equal(t, []session.Status{session.StatusLoading, session.StatusUnauthenticated}, f.statuses())
	require.Nil(t, f.manager.State().User)
	require.Empty(t, f.clock.live())
}

// TestBootstrap_FromStorage tests trust-on-presence bootstrapping with the cached user
func TestBootstrap_FromStorage(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Save(credentials.Record{AccessToken: "AT1", RefreshToken: "RT1", User: &users.Summary{FirstName: "Ada", Role: users.RoleOrganizer}})

	f.manager.Bootstrap()

	st := f.manager.State()
	require.Equal(t, session.StatusAuthenticated, st.Status)
	require.Equal(t, "Ada", st.User.FirstName)
	require.NotEmpty(t, st.SessionID)
	require.Len(t, f.clock.live(), 1, "bootstrap from storage starts the refresh schedule")
}

// TestBootstrap_Idempotent tests that a second bootstrap neither republishes nor schedules again
func TestBootstrap_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Save(credentials.Record{AccessToken: "AT1", RefreshToken: "RT1"})

	f.manager.Bootstrap()
	f.manager.Bootstrap()

	require.Len(t, f.published, 2)
	require.Len(t, f.clock.live(), 1)
	require.Len(t, f.clock.timers, 1)
}

// TestLogin_Speaker tests a successful speaker login end to end
func TestLogin_Speaker(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Bootstrap()

	nav, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)
	require.Equal(t, session.Navigation{Path: session.RouteSpeakerDashboard}, nav)

	st := f.manager.State()
	require.Equal(t, session.StatusAuthenticated, st.Status)
	require.Equal(t, users.ID("1"), st.User.ID)
	require.True(t, st.User.IsNewUser())

	rec := f.store.Load()
	require.Equal(t, "AT1", rec.AccessToken)
	require.Equal(t, "RT1", rec.RefreshToken)
	require.Len(t, f.clock.live(), 1)
}

// TestLogin_RoleRedirects tests the role based landing pages
func TestLogin_RoleRedirects(t *testing.T) {
	tests := map[users.RoleType]string{
		users.RoleSpeaker:   session.RouteSpeakerDashboard,
		users.RoleOrganizer: session.RouteOrganizerDashboard,
		users.RoleAttendee:  session.RouteDashboard,
		users.RoleAdmin:     session.RouteDashboard,
	}
	for role, want := range tests {
		t.Run(string(role), func(t *testing.T) {
			f := setupTestFixture(t)
			nav, err := f.manager.Login(context.Background(), testEmail, testPassword, role)
			require.NoError(t, err)
			require.Equal(t, want, nav.Path)
		})
	}
}

// TestLogin_HonorsRememberedRedirect tests that a remembered path wins once
func TestLogin_HonorsRememberedRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.RememberRedirect("/dashboard/organizer/events")

	nav, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleOrganizer)
	require.NoError(t, err)
	require.Equal(t, "/dashboard/organizer/events", nav.Path)

	f.manager.Logout(context.Background())
	nav, err = f.manager.Login(context.Background(), testEmail, testPassword, users.RoleOrganizer)
	require.NoError(t, err)
	require.Equal(t, session.RouteOrganizerDashboard, nav.Path)
}

// TestLogin_MissingUserSynthesized tests the minimal user built when the backend omits it
func TestLogin_MissingUserSynthesized(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.loginFn = func(context.Context, users.RoleType, string, string) (*backend.TokenResponse, error) {
		return &backend.TokenResponse{Access: "AT1", Refresh: "RT1"}, nil
	}

	_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleAttendee)
	require.NoError(t, err)
	require.Equal(t, &users.Summary{Email: testEmail, Role: users.RoleAttendee}, f.store.Load().User)
}

// TestLogin_Rejected tests that a failed login changes nothing and returns a typed error
func TestLogin_Rejected(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Bootstrap()
	before := f.manager.State()

	_, err := f.manager.Login(context.Background(), testEmail, "wrong", users.RoleSpeaker)
	require.ErrorIs(t, err, autherrors.ErrAuthenticationRejected)
	require.Equal(t, before, f.manager.State())
	require.True(t, f.store.Load().IsEmpty())
	require.Empty(t, f.clock.live())
}

// TestLogin_SupersededByLogout tests that a login answer arriving after logout is discarded
func TestLogin_SupersededByLogout(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.loginFn = func(context.Context, users.RoleType, string, string) (*backend.TokenResponse, error) {
		close(entered)
		<-release
		return &backend.TokenResponse{Access: "AT-late", Refresh: "RT-late"}, nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
		errCh <- err
	}()
	<-entered
	f.manager.Logout(context.Background())
	close(release)

	require.ErrorIs(t, <-errCh, autherrors.ErrSessionSuperseded)
	require.True(t, f.store.Load().IsEmpty())
	require.Equal(t, session.StatusUnauthenticated, f.manager.State().Status)
	require.Empty(t, f.clock.live())
}

// TestRefresh_Success tests that a scheduled refresh keeps the session authenticated
func TestRefresh_Success(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)

	f.clock.fireOnly(t)

	rec := f.store.Load()
	require.Equal(t, "AT2", rec.AccessToken)
	require.Equal(t, "RT1", rec.RefreshToken)
	require.Equal(t, session.StatusAuthenticated, f.manager.State().Status)
	require.Len(t, f.clock.live(), 1)
}

// TestRefresh_FailureForcesLogout tests that a rejected refresh ends the session with an expiry redirect
func TestRefresh_FailureForcesLogout(t *testing.T) {
	f := setupTestFixture(t)
	refreshCalls := 0
	f.backend.refreshFn = func(string) (string, error) {
		refreshCalls++
		return "", &backend.APIError{StatusCode: http.StatusUnauthorized, Kind: autherrors.ErrRefreshExpired}
	}
	_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)

	f.clock.fireOnly(t)

	require.True(t, f.store.Load().IsEmpty())
	st := f.manager.State()
	require.Equal(t, session.StatusUnauthenticated, st.Status)
	require.True(t, st.Expired)
	require.Equal(t, []session.Navigation{{Path: "/signin?session=expired"}}, f.navigation)
	require.Empty(t, f.clock.live())
	require.Equal(t, 1, refreshCalls, "no retry")
}

// TestLogout_CancelsTimerAndClears tests logout while a refresh is scheduled, with a failing backend
func TestLogout_CancelsTimerAndClears(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.logoutErr = errors.New("backend down")
	_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)
	require.Len(t, f.clock.live(), 1)

	nav := f.manager.Logout(context.Background())

	require.Equal(t, session.Navigation{Path: session.RouteSignIn}, nav)
	require.Empty(t, f.clock.live())
	require.True(t, f.store.Load().IsEmpty())
	require.Equal(t, session.StatusUnauthenticated, f.manager.State().Status)
	require.False(t, f.manager.State().Expired)
	require.Equal(t, []string{"RT1"}, f.backend.logoutTokens)
}

// TestLogout_SingleTimerAcrossCycles tests that login/logout/refresh sequences never leave two timers
func TestLogout_SingleTimerAcrossCycles(t *testing.T) {
	f := setupTestFixture(t)
	for i := 0; i < 3; i++ {
		_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
		require.NoError(t, err)
		require.LessOrEqual(t, len(f.clock.live()), 1)
		f.clock.fireOnly(t)
		require.LessOrEqual(t, len(f.clock.live()), 1)
		_, err = f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
		require.NoError(t, err)
		require.Len(t, f.clock.live(), 1)
		f.manager.Logout(context.Background())
		require.Empty(t, f.clock.live())
	}
}

// TestRegister_DoesNotAuthenticate tests that registration never creates a session
func TestRegister_DoesNotAuthenticate(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Bootstrap()

	err := f.manager.Register(context.Background(), users.RegistrationRequest{
		Email:     testEmail,
		Password:  "Password123",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      users.RoleSpeaker,
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.backend.registerCalls)
	require.Equal(t, session.StatusUnauthenticated, f.manager.State().Status)
	require.True(t, f.store.Load().IsEmpty())
	require.Equal(t, 0, f.backend.loginCalls)
}

// TestRegister_Errors tests client-side validation and backend rejection
func TestRegister_Errors(t *testing.T) {
	f := setupTestFixture(t)

	err := f.manager.Register(context.Background(), users.RegistrationRequest{Email: "nope"})
	require.ErrorIs(t, err, autherrors.ErrRegistrationFailed)
	require.Equal(t, 0, f.backend.registerCalls)

	f.backend.registerFn = func(users.RegistrationRequest) error {
		return &backend.APIError{StatusCode: http.StatusBadRequest, Message: "email: already exists", Kind: autherrors.ErrRegistrationFailed}
	}
	err = f.manager.Register(context.Background(), users.RegistrationRequest{
		Email: testEmail, Password: "Password123", FirstName: "Ada", LastName: "Lovelace", Role: users.RoleSpeaker,
	})
	require.ErrorIs(t, err, autherrors.ErrRegistrationFailed)
	require.Equal(t, "email: already exists", backend.UserMessage(err))
}

// TestReload_PicksUpExternalCredentials tests the hard-reload path used after the OAuth callback
func TestReload_PicksUpExternalCredentials(t *testing.T) {
	f := setupTestFixture(t)
	f.manager.Bootstrap()
	require.Equal(t, session.StatusUnauthenticated, f.manager.State().Status)

	f.store.Save(credentials.Record{AccessToken: "XYZ", User: &users.Summary{Email: testEmail}})
	f.manager.Reload()

	require.Equal(t, session.StatusAuthenticated, f.manager.State().Status)
	require.Len(t, f.clock.live(), 1)

	f.manager.Reload()
	require.Len(t, f.clock.live(), 1)
}

// TestToken_AuthorizesProfileRefresh tests the oauth2 token source and the profile fetch
func TestToken_AuthorizesProfileRefresh(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Token()
	require.ErrorIs(t, err, autherrors.ErrNotAuthenticated)
	require.ErrorIs(t, f.manager.RefreshProfile(context.Background()), autherrors.ErrNotAuthenticated)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer AT1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f.backend.profileFn = func(ctx context.Context, authorized *http.Client) (*users.Summary, error) {
		resp, err := authorized.Get(srv.URL)
		if err != nil {
			return nil, err
		}
		resp.Body.Close()
		return &users.Summary{ID: "1", FirstName: "Ada", LastName: "Lovelace", Email: testEmail}, nil
	}

	_, err = f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)

	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, "AT1", tok.AccessToken)

	require.NoError(t, f.manager.RefreshProfile(context.Background()))
	st := f.manager.State()
	require.Equal(t, "Ada", st.User.FirstName)
	require.Equal(t, users.RoleSpeaker, st.User.Role, "role is kept when the profile omits it")
	require.Equal(t, "Ada", f.store.Load().User.FirstName)
}

// TestSubscribe_Unsubscribe tests that unsubscribed observers stop receiving states
func TestSubscribe_Unsubscribe(t *testing.T) {
	f := setupTestFixture(t)
	var got []session.State
	unsubscribe := f.manager.Subscribe(func(st session.State) { got = append(got, st) })

	f.manager.Bootstrap()
	require.Len(t, got, 2)

	unsubscribe()
	_, err := f.manager.Login(context.Background(), testEmail, testPassword, users.RoleSpeaker)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

// TestReplace_DiscardsInFlightRefresh tests that an OAuth sign-in during a refresh keeps the new tokens whatever the refresh returns
func TestReplace_DiscardsInFlightRefresh(t *testing.T) {
	tests := []struct {
		name    string
		refresh func() (string, error)
	}{
		{
			name:    "refresh rejected",
			refresh: func() (string, error) { return "", &backend.APIError{StatusCode: http.StatusUnauthorized, Kind: autherrors.ErrRefreshExpired} },
		},
		{
			name:    "refresh succeeded",
			refresh: func() (string, error) { return "OLD-AT2", nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.store.Save(credentials.Record{AccessToken: "OLD-AT", RefreshToken: "OLD-RT", User: &users.Summary{FirstName: "Old"}})
			f.manager.Bootstrap()

			started := make(chan struct{})
			release := make(chan struct{})
			f.backend.refreshFn = func(string) (string, error) {
				close(started)
				<-release
				return tt.refresh()
			}

			live := f.clock.live()
			require.Len(t, live, 1)
			f.clock.mu.Lock()
			live[0].fired = true
			f.clock.mu.Unlock()
			done := make(chan struct{})
			go func() {
				defer close(done)
				live[0].f()
			}()
			<-started

			callback := oauthcallback.NewHandler(f.manager, oauthcallback.WithLogger(zerolog.Nop()))
			result := callback.NewCallback(oauthcallback.Params{
				AccessToken:  "NEW-AT",
				RefreshToken: "NEW-RT",
				User:         "{'first_name': 'Sam'}",
			}).Run(context.Background())
			require.False(t, result.Failed())

			close(release)
			<-done
			f.manager.Reload()

			rec := f.store.Load()
			require.Equal(t, "NEW-AT", rec.AccessToken)
			require.Equal(t, "NEW-RT", rec.RefreshToken)
			require.Equal(t, "Sam", rec.User.FirstName)
			st := f.manager.State()
			require.Equal(t, session.StatusAuthenticated, st.Status)
			require.False(t, st.Expired)
			require.Empty(t, f.navigation)
			require.Len(t, f.clock.live(), 1)
		})
	}
}

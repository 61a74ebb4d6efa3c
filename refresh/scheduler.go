// Package refresh keeps the access token of an authenticated session fresh
// by exchanging the refresh token on a timer, before the access token expires.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/speakwise-web/credentials"
	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Idle State = iota
	Scheduled
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Timer is the handle of a scheduled callback
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. The default is time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Refresher exchanges a refresh token for a new access token
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// CredentialStore is the part of credentials.Store the scheduler uses
type CredentialStore interface {
	Load() credentials.Record
	Save(rec credentials.Record)
	Clear()
}

// Scheduler owns the single refresh timer of a session. Every Start and Stop
// bumps a generation counter; a timer or refresh result from an older
// generation is ignored, so a late response can never resurrect or wipe the
// credentials of a newer session.
type Scheduler struct {
	mu         sync.Mutex
	state      State
	timer      Timer
	generation uint64
	onExpired  func(err error)

	store     CredentialStore
	refresher Refresher
	policy    Policy
	afterFunc AfterFunc
	now       func() time.Time
	timeout   time.Duration
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Scheduler)

func WithPolicy(policy Policy) Option {
	return func(s *Scheduler) {
		s.policy = policy
	}
}

func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = afterFunc
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithTimeout bounds each refresh call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		s.timeout = timeout
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates an idle scheduler. The default policy assumes a 15 minute
// access token and refreshes one minute early.
func New(store CredentialStore, refresher Refresher, opts ...Option) *Scheduler {
	s := &Scheduler{
		state:     Idle,
		store:     store,
		refresher: refresher,
		policy:    FixedLifetimePolicy{Lifetime: 15 * time.Minute, Buffer: time.Minute},
		afterFunc: realAfterFunc,
		now:       time.Now,
		timeout:   10 * time.Second,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnExpired registers the hook called after a failed refresh has cleared
// the credentials. It runs without the scheduler lock held.
func (s *Scheduler) OnExpired(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = fn
}

// Start cancels any live timer and schedules a refresh for the access token
// currently in the store.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.generation++
	s.scheduleLocked(s.generation)
}

// Stop cancels the timer and discards any refresh still in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.generation++
	s.state = Idle
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) scheduleLocked(gen uint64) {
	delay := s.policy.Delay(s.store.Load().AccessToken, s.now())
	s.timer = s.afterFunc(delay, func() { s.fire(gen) })
	s.state = Scheduled
	s.logger.Debug().Dur("delay", delay).Uint64("generation", gen).Msg("Access token refresh scheduled")
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != Scheduled {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = Refreshing
	s.mu.Unlock()

	rec := s.store.Load()
	if rec.RefreshToken == "" {
		s.mu.Lock()
		if gen == s.generation {
			s.state = Idle
		}
		s.mu.Unlock()
		s.logger.Debug().Msg("No refresh token stored, scheduler idle")
		s.metrics.Refresh("skipped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	access, err := s.refresher.Refresh(ctx, rec.RefreshToken)
	cancel()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug().Uint64("generation", gen).Msg("Discarding refresh result from a superseded session")
		s.metrics.Refresh("stale")
		return
	}

	if err != nil {
		s.state = Idle
		s.generation++
		s.store.Clear()
		hook := s.onExpired
		s.mu.Unlock()

		if !autherrors.Is(err, autherrors.ErrRefreshExpired) {
			err = fmt.Errorf("%w: %w", autherrors.ErrRefreshExpired, err)
		}
		s.logger.Warn().Err(err).Msg("Access token refresh failed, session ended")
		s.metrics.Refresh("failure")
		if hook != nil {
			hook(err)
		}
		return
	}

	s.store.Save(credentials.Record{AccessToken: access})
	s.scheduleLocked(gen)
	s.mu.Unlock()
	s.metrics.Refresh("success")
}

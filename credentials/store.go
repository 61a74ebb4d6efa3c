// Package credentials persists the access token, refresh token and cached
// user summary of the current session. The Store is the only writer of the
// underlying Storage; nothing it exposes returns an error to callers.
package credentials

import (
	"encoding/json"
	"sync"

	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Persisted layout
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Record is the durable projection of a session
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *users.Summary
}

func (r Record) IsEmpty() bool {
	return r.AccessToken == "" && r.RefreshToken == "" && r.User == nil
}

// Store reads and writes credential records. A write failure on the primary
// storage switches the store to an in-memory fallback for the remainder of
// the process, so the session still works for the current run.
type Store struct {
	mu       sync.Mutex
	primary  Storage
	fallback *MemoryStorage
	degraded bool
	logger   zerolog.Logger
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore wraps storage. A nil storage starts the store degraded.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		primary:  storage,
		fallback: NewMemoryStorage(),
		degraded: storage == nil,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the non-empty fields of rec and leaves the others untouched,
// e.g. a refresh only carries a new AccessToken.
func (s *Store) Save(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes := map[string]string{}
	if rec.AccessToken != "" {
		writes[KeyAccessToken] = rec.AccessToken
	}
	if rec.RefreshToken != "" {
		writes[KeyRefreshToken] = rec.RefreshToken
	}
	if rec.User != nil {
		data, err := json.Marshal(rec.User)
		if err != nil {
			s.logger.Err(err).Msg("Failed to serialize cached user")
		} else {
			writes[KeyUser] = string(data)
		}
	}

	for key, value := range writes {
		if err := s.storage().Set(key, value); err != nil {
			s.degrade(err)
			// Replay everything into the fallback so the record stays whole.
			for k, v := range writes {
				_ = s.fallback.Set(k, v)
			}
			return
		}
	}
}

// Load returns the stored record, or an empty one if the storage cannot be
// read. A user value that does not parse is dropped.
func (s *Store) Load() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage := s.storage()
	var rec Record

	access, _, err := storage.Get(KeyAccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Credential storage unreadable, treating as empty")
		return Record{}
	}
	rec.AccessToken = access

	if rec.RefreshToken, _, err = storage.Get(KeyRefreshToken); err != nil {
		return Record{}
	}

	rawUser, found, err := storage.Get(KeyUser)
	if err != nil {
		return Record{}
	}
	if found && rawUser != "" {
		var u users.Summary
		if err := json.Unmarshal([]byte(rawUser), &u); err != nil {
			s.logger.Warn().Err(err).Msg("Discarding unparsable cached user")
		} else {
			rec.User = &u
		}
	}
	return rec
}

// Clear removes the access token, refresh token and cached user.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.fallback.Remove(KeyAccessToken, KeyRefreshToken, KeyUser)
	if s.primary == nil {
		return
	}
	if err := s.primary.Remove(KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		s.logger.Err(err).Msg("Failed to clear credential storage")
	}
}

// Replace swaps the whole record for rec: nothing of the previous session survives.
func (s *Store) Replace(rec Record) {
	s.Clear()
	s.Save(rec)
}

// HasValidSession reports whether an access token is present. It does not
// check signature or expiry; the backend decides real validity.
func (s *Store) HasValidSession() bool {
	return s.Load().AccessToken != ""
}

// Degraded reports whether the store fell back to memory.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) storage() Storage {
	if s.degraded {
		return s.fallback
	}
	return s.primary
}

func (s *Store) degrade(err error) {
	if s.degraded {
		return
	}
	s.degraded = true
	s.logger.Warn().
		Err(autherrors.Wrapf(autherrors.ErrCredentialStorageUnavailable, "%v", err)).
		Msg("Credentials will not survive a restart")
}

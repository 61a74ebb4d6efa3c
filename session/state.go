package session

import (
	"fmt"

	"github.com/jrsteele09/speakwise-web/users"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is the published authentication state. It is a value; subscribers
// receive copies.
type State struct {
	Status    Status         `json:"status"`
	User      *users.Summary `json:"user,omitempty"`
	SessionID string         `json:"session_id,omitempty"` // Correlates log lines of one authenticated session
	Expired   bool           `json:"expired,omitempty"`    // The session ended because a refresh failed
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// Resolved reports whether bootstrapping has finished.
func (s State) Resolved() bool {
	return s.Status == StatusAuthenticated || s.Status == StatusUnauthenticated
}

func (s State) Role() users.RoleType {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Navigation tells the composition root where to send the user next.
// FullReload asks for a hard navigation: the application re-initialises its
// session from the credential store (see Manager.Reload).
type Navigation struct {
	Path       string
	FullReload bool
}

package refresh

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinDelay is the shortest delay a policy will return.
const MinDelay = time.Second

// Policy decides how long to wait before refreshing accessToken.
type Policy interface {
	Delay(accessToken string, now time.Time) time.Duration
}

// FixedLifetimePolicy assumes every access token lives for Lifetime and
// fires Buffer before that. It never looks inside the token, so a backend
// lifetime change has to be mirrored in configuration.
type FixedLifetimePolicy struct {
	Lifetime time.Duration
	Buffer   time.Duration
}

func (p FixedLifetimePolicy) Delay(string, time.Time) time.Duration {
	d := p.Lifetime - p.Buffer
	if d <= 0 {
		d = p.Lifetime / 2
	}
	if d < MinDelay {
		d = MinDelay
	}
	return d
}

// ExpiryClaimPolicy reads the exp claim of a JWT access token and fires
// Buffer before it. The signature is not verified; the claim is only used
// for scheduling. Opaque tokens, or tokens without exp, use Fallback.
type ExpiryClaimPolicy struct {
	Buffer   time.Duration
	Fallback Policy
}

func (p ExpiryClaimPolicy) Delay(accessToken string, now time.Time) time.Duration {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil || claims.ExpiresAt == nil {
		if p.Fallback == nil {
			return MinDelay
		}
		return p.Fallback.Delay(accessToken, now)
	}
	d := claims.ExpiresAt.Sub(now) - p.Buffer
	if d < MinDelay {
		d = MinDelay
	}
	return d
}

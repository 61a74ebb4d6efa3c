package config

import (
	"os"
	"path/filepath"
	"time"
)

type SessionConfig interface {
	GetAccessTokenLifetime() time.Duration
	GetRefreshSafetyBuffer() time.Duration
	GetRefreshUseExpiryClaim() bool
	GetRequestTimeout() time.Duration
	GetCredentialsFile() string
	GetCredentialsKey() string
}

type Session struct {
	file *FileValues
}

var _ SessionConfig = Session{}

// GetAccessTokenLifetime is the assumed access token lifetime. The refresh
// schedule is derived from it, not from the token itself.
func (s Session) GetAccessTokenLifetime() time.Duration {
	return lookupDuration("ACCESS_TOKEN_LIFETIME", s.file.AccessTokenLifetime, 15*time.Minute)
}

func (s Session) GetRefreshSafetyBuffer() time.Duration {
	return lookupDuration("REFRESH_SAFETY_BUFFER", s.file.RefreshSafetyBuffer, time.Minute)
}

// GetRefreshUseExpiryClaim switches the scheduler to the JWT exp claim when the token carries one.
func (s Session) GetRefreshUseExpiryClaim() bool {
	return lookupBool("REFRESH_USE_EXPIRY_CLAIM", s.file.RefreshUseExpiryClaim, false)
}

func (s Session) GetRequestTimeout() time.Duration {
	return lookupDuration("REQUEST_TIMEOUT", s.file.RequestTimeout, 10*time.Second)
}

// GetCredentialsFile defaults to speakwise/credentials.json under the user config dir.
func (s Session) GetCredentialsFile() string {
	defaultPath := "./data/credentials.json"
	if dir, err := os.UserConfigDir(); err == nil {
		defaultPath = filepath.Join(dir, "speakwise", "credentials.json")
	}
	return lookup("CREDENTIALS_FILE", s.file.CredentialsFile, defaultPath)
}

// GetCredentialsKey is an optional passphrase; when set the credential file is sealed at rest.
func (s Session) GetCredentialsKey() string {
	return lookup("CREDENTIALS_KEY", s.file.CredentialsKey, "")
}

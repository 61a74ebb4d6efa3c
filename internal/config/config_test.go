package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/speakwise-web/internal/config"
	"github.com/stretchr/testify/require"
)

// TestNew_Defaults tests the built-in defaults when nothing is configured
func TestNew_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("HOST", "")
	t.Setenv("ACCESS_TOKEN_LIFETIME", "")
	t.Setenv("REFRESH_SAFETY_BUFFER", "")

	c := config.New()

	require.Equal(t, "http://localhost:8000/api", c.GetAPIBaseURL())
	require.Equal(t, "localhost:3000", c.GetPort(), "loopback only by default")
	require.Equal(t, 15*time.Minute, c.GetAccessTokenLifetime())
	require.Equal(t, time.Minute, c.GetRefreshSafetyBuffer())
	require.False(t, c.GetRefreshUseExpiryClaim())
	require.Empty(t, c.GetOIDCIssuer())
}

// TestLoad_FileThenEnv tests that env vars override the YAML file, which overrides defaults
func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakwise.yaml")
	content := []byte(`
api_base_url: https://api.speakwise.test/api/
access_token_lifetime: 30m
refresh_use_expiry_claim: "true"
allowed_origins:
  - https://app.speakwise.test
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("API_BASE_URL", "")
	t.Setenv("ACCESS_TOKEN_LIFETIME", "")
	t.Setenv("REFRESH_USE_EXPIRY_CLAIM", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("PORT", "8081")
	t.Setenv("HOST", "")

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://api.speakwise.test/api", c.GetAPIBaseURL(), "trailing slash is trimmed")
	require.Equal(t, 30*time.Minute, c.GetAccessTokenLifetime())
	require.True(t, c.GetRefreshUseExpiryClaim())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://app.speakwise.test"))
	require.Equal(t, "localhost:8081", c.GetPort())

	t.Setenv("ACCESS_TOKEN_LIFETIME", "5m")
	require.Equal(t, 5*time.Minute, c.GetAccessTokenLifetime())
}

// TestLoad_InvalidDurationFallsBack tests that unparsable durations use the default
func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("REFRESH_SAFETY_BUFFER", "soon")
	require.Equal(t, time.Minute, config.New().GetRefreshSafetyBuffer())
}

// TestLoad_MissingFile tests that a missing config file is reported
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestGetPort_ExplicitAddress tests that HOST and a full PORT address widen the bind
func TestGetPort_ExplicitAddress(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "0.0.0.0")
	require.Equal(t, "0.0.0.0:9000", config.New().GetPort())

	t.Setenv("PORT", ":9001")
	require.Equal(t, ":9001", config.New().GetPort())
}

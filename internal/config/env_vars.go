package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar       = "PORT"
	hostEnvVar       = "HOST"
	appNameVar       = "APP_NAME"
	envVar           = "ENV"
	baseURLVar       = "BASE_URL"
	apiBaseURLEnvVar = "API_BASE_URL"
)

type EnvVars struct {
	file *FileValues
}

var _ EnvConfig = EnvVars{}

// GetPort returns the listen address. The server holds a single session, so
// it binds to loopback unless HOST says otherwise. A PORT that already names
// an address (":3000", "0.0.0.0:3000") is used as is.
func (e EnvVars) GetPort() string {
	port := lookup(portEnvVar, e.file.Port, "3000")
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf("%s:%s", lookup(hostEnvVar, e.file.Host, "localhost"), port)
}

func (e EnvVars) GetAppName() string {
	return lookup(appNameVar, e.file.AppName, "SpeakWise")
}

func (e EnvVars) GetEnv() string {
	return lookup(envVar, e.file.Env, "DEV")
}

// GetBaseURL returns the public URL of this web front (e.g., "https://speakwise.example.com").
// OAuth providers redirect back to GetBaseURL() + "/auth/callback".
func (e EnvVars) GetBaseURL() string {
	return lookup(baseURLVar, e.file.BaseURL, "http://localhost:3000")
}

// GetAPIBaseURL returns the root of the SpeakWise REST backend, local development by default.
func (e EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(lookup(apiBaseURLEnvVar, e.file.APIBaseURL, "http://localhost:8000/api"), "/")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// lookup resolves a setting from the environment, then the config file, then the default.
func lookup(envVar, fileValue, defaultValue string) string {
	if fileValue != "" {
		defaultValue = fileValue
	}
	return GetEnv(envVar, defaultValue)
}

func lookupDuration(envVar, fileValue string, defaultValue time.Duration) time.Duration {
	raw := lookup(envVar, fileValue, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func lookupBool(envVar, fileValue string, defaultValue bool) bool {
	raw := lookup(envVar, fileValue, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return b
}

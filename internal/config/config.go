package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetAPIBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// FileValues mirrors the optional YAML config file. Every key is optional;
// environment variables win over the file and the file wins over defaults.
type FileValues struct {
	Port                  string   `yaml:"port"`
	Host                  string   `yaml:"host"`
	AppName               string   `yaml:"app_name"`
	Env                   string   `yaml:"env"`
	BaseURL               string   `yaml:"base_url"`
	APIBaseURL            string   `yaml:"api_base_url"`
	AllowedOrigins        []string `yaml:"allowed_origins"`
	AccessTokenLifetime   string   `yaml:"access_token_lifetime"`
	RefreshSafetyBuffer   string   `yaml:"refresh_safety_buffer"`
	RefreshUseExpiryClaim string   `yaml:"refresh_use_expiry_claim"`
	RequestTimeout        string   `yaml:"request_timeout"`
	CredentialsFile       string   `yaml:"credentials_file"`
	CredentialsKey        string   `yaml:"credentials_key"`
	OAuthRedirectDelay    string   `yaml:"oauth_redirect_delay"`
	OIDCIssuer            string   `yaml:"oidc_issuer"`
	OIDCClientID          string   `yaml:"oidc_client_id"`
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	OAuth
}

// New returns a config backed by environment variables and defaults only.
func New() Config {
	return newMainConfig(&FileValues{})
}

// Load returns a config that additionally reads the YAML file at path.
// An empty path behaves like New.
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[config Load] read %s: %w", path, err)
	}
	values := &FileValues{}
	if err := yaml.Unmarshal(data, values); err != nil {
		return nil, fmt.Errorf("[config Load] parse %s: %w", path, err)
	}
	return newMainConfig(values), nil
}

func newMainConfig(values *FileValues) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{file: values},
		Cors:    Cors{file: values},
		Session: Session{file: values},
		OAuth:   OAuth{file: values},
	}
}

package config

import "time"

type OAuthConfig interface {
	GetOAuthRedirectDelay() time.Duration
	GetOIDCIssuer() string
	GetOIDCClientID() string
}

type OAuth struct {
	file *FileValues
}

var _ OAuthConfig = OAuth{}

// GetOAuthRedirectDelay is how long the callback interstitial shows its message before navigating.
func (o OAuth) GetOAuthRedirectDelay() time.Duration {
	return lookupDuration("OAUTH_REDIRECT_DELAY", o.file.OAuthRedirectDelay, 2*time.Second)
}

// GetOIDCIssuer enables id_token verification on the OAuth callback when set.
func (o OAuth) GetOIDCIssuer() string {
	return lookup("OIDC_ISSUER", o.file.OIDCIssuer, "")
}

func (o OAuth) GetOIDCClientID() string {
	return lookup("OIDC_CLIENT_ID", o.file.OIDCClientID, "")
}

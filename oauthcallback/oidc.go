package oauthcallback

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/users"
)

// IDTokenVerifier checks an id_token and returns the user it describes
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*users.Summary, error)
}

// OIDCVerifier verifies id_tokens against an OpenID Connect provider
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ IDTokenVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier discovers the provider at issuer and verifies tokens issued to clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[NewOIDCVerifier] discovering %s", issuer)
	}
	return WrapVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// WrapVerifier adapts an already configured go-oidc verifier.
func WrapVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

type idTokenClaims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Role       string `json:"role"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*users.Summary, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrOAuthDenied, "[OIDCVerifier] %v", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrOAuthDenied, "[OIDCVerifier] claims: %v", err)
	}

	user := &users.Summary{
		ID:        users.ID(idToken.Subject),
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		Email:     claims.Email,
	}
	if role, err := users.ParseRole(claims.Role); err == nil {
		user.Role = role
	}
	return user, nil
}

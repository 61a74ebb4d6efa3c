package backend

import (
	"fmt"

	autherrors "github.com/jrsteele09/speakwise-web/internal/errors"
	"github.com/jrsteele09/speakwise-web/users"
)

// Route path constants of the SpeakWise REST API, relative to the API base URL
const (
	RouteLoginFmt     = "/auth/%s/"
	RouteTokenRefresh = "/auth/token/refresh/"
	RouteLogout       = "/users/logout/"
	RouteRegister     = "/users/register/"
	RouteProfile      = "/users/me/"
)

// TokenResponse is the body of a successful login
type TokenResponse struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	User    *users.Summary `json:"user,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// APIError is a non-2xx answer from the backend. Kind is one of the
// internal/errors sentinels and is what errors.Is matches against.
type APIError struct {
	StatusCode int
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", e.Kind, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// UserMessage is the text a form should show for err.
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case autherrors.Is(err, autherrors.ErrNetwork):
		return "Unable to reach SpeakWise. Check your connection and try again."
	case autherrors.Is(err, autherrors.ErrAuthenticationRejected):
		return "Invalid email or password."
	case autherrors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	default:
		return "Something went wrong. Please try again."
	}
}

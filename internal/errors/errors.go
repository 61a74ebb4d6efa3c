package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SpeakWise session layer
var (
	// Credential storage errors
	ErrCredentialStorageUnavailable = errors.New("credential storage unavailable")

	// Authentication errors
	ErrAuthenticationRejected = errors.New("authentication rejected")
	ErrRegistrationFailed     = errors.New("registration failed")
	ErrNotAuthenticated       = errors.New("not authenticated")

	// Token errors
	ErrRefreshExpired = errors.New("refresh token expired")

	// OAuth callback errors
	ErrOAuthDenied     = errors.New("oauth sign-in denied")
	ErrOAuthIncomplete = errors.New("oauth sign-in incomplete")

	// Session errors
	ErrSessionSuperseded = errors.New("session superseded")

	// General errors
	ErrNetwork        = errors.New("network error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnexpected     = errors.New("unexpected response")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

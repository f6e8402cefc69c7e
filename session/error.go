package session

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrAuthorizationServer means the redirect URL carried an
	// error/error_description pair from the authorization server.  It is
	// terminal: the offending query parameters are stripped from history
	// before the error is returned, so a reload does not replay it.
	ErrAuthorizationServer = errors.New("authorization server error")

	// ErrSilentReauthFailed means a silent sign-in signal carried a code
	// but the exchange for tokens failed.  A missing signal is not an
	// error; only a failed exchange is.
	ErrSilentReauthFailed = errors.New("silent reauthentication failed")

	// ErrNoSignOutURL means sign-out was asked to use the cached sign-out
	// URL but none was ever stored.
	ErrNoSignOutURL = errors.New("no sign-out url")
)

// AuthorizationServerError carries the error/error_description pair read
// from a redirect URL.
type AuthorizationServerError struct {
	Code        string
	Description string
}

func (e *AuthorizationServerError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("authorization server returned %q", e.Code)
	}
	return fmt.Sprintf("authorization server returned %q: %s", e.Code, e.Description)
}

func (e *AuthorizationServerError) Unwrap() error { return ErrAuthorizationServer }

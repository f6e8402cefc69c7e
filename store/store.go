package store

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned from Get when no value exists for a key.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNilParameter is returned when a required parameter is nil.
	ErrNilParameter = errors.New("nil parameter")
)

// Well-known keys used by the session layer.  Both execution contexts read
// and write session data through a SessionStore using these keys; anything
// else each context keeps to itself.
const (
	KeyAccessToken        = "access_token"
	KeyRefreshToken       = "refresh_token"
	KeyIDToken            = "id_token"
	KeyExpiresAt          = "expires_at"
	KeySessionState       = "session_state"
	KeyAllowedScopes      = "allowed_scopes"
	KeySignOutURL         = "sign_out_url"
	KeyRefreshTimerHandle = "refresh_timer_handle"

	// PKCEKeyPrefix prefixes the correlation key extracted from an
	// authorization request's state parameter.  Values stored under it are
	// single use: read once, then removed.
	PKCEKeyPrefix = "pkce_code_verifier_"
)

// SessionStore is a key/value data layer for session state.  Implementations
// must be safe for concurrent use.  Get returns ErrKeyNotFound when the key
// has no value.
type SessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}

package worker

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrNotInitialized             = errors.New("engine not initialized")
	ErrNoSession                  = errors.New("no active session")
	ErrNoRefreshToken             = errors.New("no refresh token")
	ErrMissingIdToken             = errors.New("id_token is missing")
	ErrUnknownMessageType         = errors.New("unknown message type")
	ErrTransportBacklogFull       = errors.New("transport backlog is full")
	ErrTransportClosed            = errors.New("transport is closed")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
	ErrRevocationFailed           = errors.New("token revocation failed")
	ErrCustomGrantFailed          = errors.New("custom grant failed")
)

package session

import (
	"context"
	"net/url"
)

// Reserved identifiers for the hidden browsing contexts the controller
// manages.  Host integrations must not reuse them for their own frames.
const (
	// PromptNoneIFrameID names the hidden frame used for silent
	// (prompt=none) sign-in attempts.
	PromptNoneIFrameID = "oidc-silent-sign-in-iframe"

	// CheckSessionIFrameID names the hidden frame pointed at the
	// provider's check-session endpoint for liveness polling.
	CheckSessionIFrameID = "oidc-check-session-iframe"

	// SilentSignInState is the reserved state value stamped on silent
	// authorization requests.  A redirect landing with this state is
	// reported back over the SignalBus instead of being treated as a
	// top-level sign-in.
	SilentSignInState = "silent-sign-in"
)

// SignalType identifies the outcome a hidden frame reports after an
// authorization round trip or a check-session poll.
type SignalType string

const (
	SignalSignedIn       SignalType = "check-session-signed-in"
	SignalSignedOut      SignalType = "check-session-signed-out"
	SignalSessionChanged SignalType = "check-session-state-changed"
)

// Signal is the payload a hidden frame publishes on the SignalBus.  Code,
// SessionState and State are only set for SignalSignedIn.
type Signal struct {
	Type         SignalType
	Code         string
	SessionState string
	State        string
}

// Frame loads URLs into a hidden browsing context.  Navigate returns once
// the load has been handed off; it does not wait for the frame's document
// to act on the result.
type Frame interface {
	Navigate(ctx context.Context, rawURL string) error
}

// Navigator performs top-level navigations, replacing the current
// document.  Navigate blocks until the navigation has been committed.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) error
}

// Location exposes the current document URL and a history-replacing write
// that does not trigger a navigation.
type Location interface {
	Current() (*url.URL, error)
	Replace(u *url.URL) error
}

// SignalBus fans signals out from hidden frames to whoever is waiting on
// them.  Subscribe registers a handler and returns its deregistration
// func; Publish delivers to every current subscriber.
type SignalBus interface {
	Subscribe(fn func(Signal)) (cancel func(), err error)
	Publish(s Signal)
}

// Browser groups the host-environment hooks a Client needs.  Frame and
// CheckSessionFrame may be the same implementation; Bus carries the
// signals those frames publish back.
type Browser struct {
	Frame             Frame
	CheckSessionFrame Frame
	Navigator         Navigator
	Location          Location
	Bus               SignalBus
}

func (b Browser) validate() error {
	switch {
	case b.Frame == nil:
		return ErrNilParameter
	case b.CheckSessionFrame == nil:
		return ErrNilParameter
	case b.Navigator == nil:
		return ErrNilParameter
	case b.Location == nil:
		return ErrNilParameter
	case b.Bus == nil:
		return ErrNilParameter
	}
	return nil
}

package worker

import (
	"context"

	"github.com/authcell/authcell/rpc"
)

// Engine is the authentication engine the worker loop dispatches to.  It is
// deliberately opaque to the host: authorization-URL construction, token
// parsing and PKCE generation all happen behind it, and the only way to
// reach it is a message across the boundary.
//
// Implementations own the worker-side session store, which is the single
// source of truth for token state; every operation must re-read it rather
// than trusting memory from an earlier call.
type Engine interface {
	// Initialize configures the engine.  It is the first operation a host
	// sends; other operations fail with ErrNotInitialized before it.
	Initialize(ctx context.Context, cfg rpc.ClientConfig) error

	// UpdateConfig merges an updated configuration over the current one.
	UpdateConfig(ctx context.Context, cfg rpc.ClientConfig) error

	// AuthorizationURL builds an authorization URL from the configured
	// defaults and the request's extra parameters.  When PKCE is enabled
	// the response carries the code verifier for the host to hold until
	// the matching exchange.
	AuthorizationURL(ctx context.Context, req rpc.AuthURLRequest) (*rpc.AuthURLResponse, error)

	// RequestAccessToken exchanges an authorization code for tokens and
	// persists the resulting session.
	RequestAccessToken(ctx context.Context, info rpc.AuthorizationInfo) (*rpc.TokenResponse, error)

	// RefreshAccessToken renews the session with the stored refresh token.
	RefreshAccessToken(ctx context.Context) (*rpc.TokenResponse, error)

	// RevokeAccessToken revokes the current access token at the provider
	// and clears the session.
	RevokeAccessToken(ctx context.Context) error

	// CustomGrant performs a token request outside the standard grants.
	CustomGrant(ctx context.Context, req rpc.CustomGrantRequest) (*rpc.CustomGrantResponse, error)

	// SignOut clears the session and returns the provider sign-out URL the
	// host must navigate to.
	SignOut(ctx context.Context) (string, error)

	// SignOutURL returns the provider sign-out URL without clearing the
	// session.
	SignOutURL(ctx context.Context) (string, error)

	// SetSessionState records an updated session_state value.
	SetSessionState(ctx context.Context, sessionState string) error

	// SessionStatus reports a snapshot of the current session.
	SessionStatus(ctx context.Context) (*rpc.SessionStatus, error)

	BasicUserInfo(ctx context.Context) (*rpc.BasicUserInfo, error)
	DecodedIDToken(ctx context.Context) (map[string]interface{}, error)
	IDToken(ctx context.Context) (string, error)
	ServiceEndpoints(ctx context.Context) (*rpc.ServiceEndpoints, error)
	ConfigData(ctx context.Context) (*rpc.ClientConfig, error)

	// HTTPRequest executes a proxied API call, attaching the access token
	// when asked to, and reports the response for the host's hooks.
	HTTPRequest(ctx context.Context, req rpc.HTTPRequest) (*rpc.HTTPResponse, error)
}

// authcell is a collection of packages for running OIDC session
// management split across two cooperating execution contexts: a host
// context that owns navigation, timers and hidden frames, and a worker
// context that owns tokens and all provider traffic.
//
// The rpc package defines the typed message protocol and the correlated
// request/response channel between the two contexts.
//
// The worker package implements the token-holding side: a dispatch loop
// over the channel and an OIDC engine built on provider discovery, code
// exchange with PKCE, refresh, revocation and proxied API calls.
//
// The session package implements the host side: the sign-in lifecycle
// controller, the token refresh timer, silent (prompt=none)
// reauthentication through a hidden frame, and periodic provider
// session liveness checks.
//
// The store package provides the pluggable key/value session storage
// both sides persist their state in.
package authcell

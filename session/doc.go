// Package session provides the host-side OIDC session lifecycle
// controller.  A Client talks to the worker-side engine over a
// correlated rpc.Channel and keeps all token material on the worker
// side; locally it only manages what the host environment must own: the
// refresh timer, parked PKCE verifiers, the cached sign-out URL, the
// hidden frames used for silent (prompt=none) reauthentication and the
// periodic provider session liveness check.
//
// The host environment is abstracted behind the Browser hooks (Frame,
// Navigator, Location, SignalBus), so the controller can be exercised
// end to end in tests without a real browsing context.
package session

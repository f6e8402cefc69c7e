/*
worker is the isolated execution context that owns all OIDC session state.

The host context never touches tokens directly: it posts typed messages
through a pipe created by Pipe, and the Worker loop dispatches them to an
Engine.  The default engine, OIDCEngine, implements the 3-legged OIDC
authorization code flow (discovery, PKCE, code exchange, refresh, RFC 7009
revocation) and persists the session in a store.SessionStore, which is the
single source of truth for token state.

The worker replies exactly once per request, pushes out-of-band progress
notifications (request-start/finish/success) around proxied HTTP calls, and
reports engine panics as failed responses rather than tearing down the
loop.
*/
package worker

/*
store provides the key/value session data layer shared by the host and
worker execution contexts.

A SessionStore holds string values under well-known keys: tokens, expiry,
session state, the persisted refresh-timer handle, and single-use PKCE code
verifiers.  The package ships two implementations: Memory, a process-local
map, and Redis, for session state that must survive the process.
*/
package store

/*
rpc is the message protocol and correlated request/response channel between
the host context and the isolated worker context.

Primary types provided by the package

* Message: the typed envelope sent across the execution boundary.  The type
is drawn from a closed set of operation names.

* Response: the worker's reply.  Exactly one of Data/Error is meaningful per
the Success value; an optional Blob carries a binary part.

* Channel: issues a request and waits for exactly one matching response or a
timeout, independent of other in-flight requests.  Each call owns a fresh
dedicated reply channel, so duplicate or misrouted responses are
structurally impossible.  Out-of-band notifications (request-start,
request-finish, request-success) are delivered to a single registered
handler with a no-op default.

* Transport: the abstraction a Channel runs over.  The worker package
provides an in-process implementation via worker.Pipe.
*/
package rpc

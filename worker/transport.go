package worker

import (
	"fmt"
	"sync"

	"github.com/authcell/authcell/rpc"
)

// defaultBacklog bounds the number of requests a host can queue while the
// worker loop is busy.
const defaultBacklog = 64

// envelope pairs a request with the dedicated reply channel for this one
// call.
type envelope struct {
	msg   rpc.Message
	reply chan<- rpc.Response
}

// HostTransport is the host-side end of an in-process pipe.  It satisfies
// rpc.Transport.
type HostTransport struct {
	requests      chan envelope
	notifications chan rpc.Message

	mu     sync.Mutex
	closed bool
}

// ensure that HostTransport implements the rpc.Transport interface
var _ rpc.Transport = (*HostTransport)(nil)

// WorkerTransport is the worker-side end of an in-process pipe, consumed by
// Worker.Run.
type WorkerTransport struct {
	requests      chan envelope
	notifications chan rpc.Message
}

// Pipe creates the two ends of an in-process duplex transport.  The two
// contexts communicate only through it: no shared mutable memory crosses the
// pipe.
func Pipe() (*HostTransport, *WorkerTransport) {
	requests := make(chan envelope, defaultBacklog)
	notifications := make(chan rpc.Message, defaultBacklog)
	return &HostTransport{
			requests:      requests,
			notifications: notifications,
		}, &WorkerTransport{
			requests:      requests,
			notifications: notifications,
		}
}

// Post queues m for the worker loop.  It never blocks: when the backlog is
// full the post fails and the caller's timeout policy applies.
func (t *HostTransport) Post(m rpc.Message, reply chan<- rpc.Response) error {
	const op = "worker.(HostTransport).Post"
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("%s: %w", op, ErrTransportClosed)
	}
	select {
	case t.requests <- envelope{msg: m, reply: reply}:
		return nil
	default:
		return fmt.Errorf("%s: %w", op, ErrTransportBacklogFull)
	}
}

// Notifications returns the worker's out-of-band message stream.
func (t *HostTransport) Notifications() <-chan rpc.Message {
	return t.notifications
}

// Close marks the host end closed.  Posts after Close fail; the worker loop
// drains what was already queued.
func (t *HostTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.requests)
	}
}

// notify pushes an out-of-band message toward the host.  Notifications are
// advisory: when the host is not draining them, they are dropped rather than
// stalling the worker loop.
func (t *WorkerTransport) notify(m rpc.Message) {
	select {
	case t.notifications <- m:
	default:
	}
}

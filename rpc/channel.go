package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultTimeout is the per-call deadline applied when no WithTimeout option
// is given.
const DefaultTimeout = 60 * time.Second

// Transport moves envelopes across the execution boundary.  Post delivers a
// request together with the dedicated reply channel for this one call;
// Notifications exposes the worker's out-of-band pushes.
type Transport interface {
	// Post must not block on the reply channel: the channel owns it and
	// reads at most one Response from it.
	Post(m Message, reply chan<- Response) error

	// Notifications returns the stream of out-of-band messages.  The
	// channel is closed when the transport shuts down.
	Notifications() <-chan Message
}

// Channel issues correlated request/response calls across a Transport.  Each
// call creates a fresh dedicated reply channel, so misrouted or duplicate
// responses are structurally impossible: no request ids, no demultiplexing.
//
// A Channel is safe for concurrent use; any number of calls may be in flight
// at once and each settles independently.
type Channel struct {
	transport Transport
	timeout   time.Duration
	logger    hclog.Logger

	mu          sync.Mutex
	notify      func(Message)
	pumpStarted bool
}

// New creates a Channel over the given transport.
// Supported options: WithTimeout, WithLogger.
func New(t Transport, opt ...Option) (*Channel, error) {
	const op = "rpc.New"
	if t == nil {
		return nil, fmt.Errorf("%s: transport is nil: %w", op, ErrNilParameter)
	}
	opts := getChannelOpts(opt...)
	return &Channel{
		transport: t,
		timeout:   opts.withTimeout,
		logger:    opts.withLogger,
		notify:    func(Message) {},
	}, nil
}

// Send posts m and waits for exactly one matching response or the deadline,
// whichever comes first.  On success the response payload is decoded into
// result (which may be nil when no payload is expected) and, when a binary
// part is present and result implements BlobReceiver, the blob is attached
// before returning.  On a worker-reported failure Send returns a
// *RemoteError; on deadline expiry a *TimeoutError.  No retry is attempted
// by this layer.
//
// Supported options: WithTimeout (overrides the channel default for this
// call only).
func (c *Channel) Send(ctx context.Context, m Message, result interface{}, opt ...Option) error {
	const op = "rpc.(Channel).Send"
	if ctx == nil {
		return fmt.Errorf("%s: context is nil: %w", op, ErrNilParameter)
	}
	opts := getChannelOpts(opt...)
	timeout := c.timeout
	if opts.timeoutSet {
		timeout = opts.withTimeout
	}

	reply := make(chan Response, 1)
	if err := c.transport.Post(m, reply); err != nil {
		return fmt.Errorf("%s: unable to post %q: %w", op, m.Type, err)
	}

	timer := time.NewTimer(timeout)
	// stop the timer as soon as this call settles so it cannot fire after
	// the fact
	defer timer.Stop()

	select {
	case resp := <-reply:
		return c.settle(m, resp, result)
	case <-timer.C:
		c.logger.Debug("rpc call timed out", "type", m.Type, "timeout", timeout)
		return &TimeoutError{Type: m.Type, Elapsed: timeout.Seconds()}
	case <-ctx.Done():
		return fmt.Errorf("%s: %q: %w", op, m.Type, ctx.Err())
	}
}

func (c *Channel) settle(m Message, resp Response, result interface{}) error {
	const op = "rpc.(Channel).Send"
	if !resp.Success {
		return &RemoteError{Type: m.Type, Payload: resp.Error}
	}
	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("%s: unable to decode %q response: %w", op, m.Type, err)
		}
	}
	if len(resp.Blob) > 0 {
		if br, ok := result.(BlobReceiver); ok {
			br.AttachBlob(resp.Blob)
		}
	}
	return nil
}

// SetNotificationHandler registers the handler invoked for each out-of-band
// message.  A nil handler restores the default no-op.  Registration may
// happen at any time, including repeatedly; the last handler wins.
func (c *Channel) SetNotificationHandler(fn func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		fn = func(Message) {}
	}
	c.notify = fn
}

// StartNotifications starts delivering the transport's out-of-band messages
// to the registered handler.  It is idempotent: a second call is a no-op.
// Delivery stops when ctx is done or the transport closes its stream.
func (c *Channel) StartNotifications(ctx context.Context) {
	c.mu.Lock()
	if c.pumpStarted {
		c.mu.Unlock()
		return
	}
	c.pumpStarted = true
	c.mu.Unlock()

	go func() {
		for {
			select {
			case m, ok := <-c.transport.Notifications():
				if !ok {
					return
				}
				c.mu.Lock()
				fn := c.notify
				c.mu.Unlock()
				fn(m)
			case <-ctx.Done():
				return
			}
		}
	}()
}

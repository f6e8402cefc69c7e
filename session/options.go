package session

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil {
			continue
		}
		o(opts)
	}
}

type clientOptions struct {
	withLogger          hclog.Logger
	withSessionStore    store.SessionStore
	withRequestTimeout  time.Duration
	withSilentTimeout   time.Duration
	withSilentTarget    bool
	withSignInHooks     Hooks
	withSignInInfo      *rpc.AuthorizationInfo
	withSignInParams    map[string]string
}

func clientDefaults() clientOptions {
	return clientOptions{
		withSilentTimeout: DefaultSilentSignInTimeout,
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional hclog.Logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withLogger = l
		}
	}
}

// WithSessionStore provides the host-side store used for PKCE verifiers,
// the refresh timer handle and the cached sign-out URL.  Defaults to an
// in-memory store.
func WithSessionStore(s store.SessionStore) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSessionStore = s
		}
	}
}

// WithRequestTimeout overrides the per-call timeout applied to every
// message sent over the channel.
func WithRequestTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withRequestTimeout = d
		}
	}
}

// WithSilentSignInTimeout overrides the ceiling a silent sign-in attempt
// waits for a signal before giving up.
func WithSilentSignInTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSilentTimeout = d
		}
	}
}

// WithSilentSignInTarget marks this Client as running inside the hidden
// silent sign-in frame.  SignIn then reports the redirect outcome over
// the SignalBus instead of performing a top-level sign-in.
func WithSilentSignInTarget() Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSilentTarget = true
		}
	}
}

// WithHooks registers request lifecycle hooks at construction.  Nil hooks
// are replaced with no-ops.
func WithHooks(h Hooks) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSignInHooks = h
		}
	}
}

// WithAuthorizationCode supplies an authorization response out of band,
// for response modes where the code never appears in the URL.
func WithAuthorizationCode(code, sessionState, state string) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSignInInfo = &rpc.AuthorizationInfo{
				Code:         code,
				SessionState: sessionState,
				State:        state,
			}
		}
	}
}

// WithSignInParams supplies extra authorization request parameters for a
// single SignIn call.
func WithSignInParams(params map[string]string) Option {
	return func(o interface{}) {
		if v, ok := o.(*clientOptions); ok {
			v.withSignInParams = params
		}
	}
}

package rpc

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default
// options and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// channelOptions is the set of available options for Channel functions.
type channelOptions struct {
	withTimeout time.Duration
	timeoutSet  bool
	withLogger  hclog.Logger
}

// channelDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func channelDefaults() channelOptions {
	return channelOptions{
		withTimeout: DefaultTimeout,
		withLogger:  hclog.NewNullLogger(),
	}
}

// getChannelOpts gets the channel defaults and applies the opt overrides
// passed in.
func getChannelOpts(opt ...Option) channelOptions {
	opts := channelDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTimeout provides an optional per-call deadline, overriding the
// channel's default of DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok {
			o.withTimeout = d
			o.timeoutSet = true
		}
	}
}

// WithLogger provides an optional logger for the channel.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*channelOptions); ok {
			o.withLogger = l
		}
	}
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultCheckSessionInterval is the polling cadence used when the
// configuration does not specify one.
const DefaultCheckSessionInterval = 3 * time.Second

// livenessChecker periodically points a hidden frame at the provider's
// check-session endpoint.  When the frame's document reports the
// provider session changed, onStale runs to re-establish local state,
// typically via a silent sign-in.
type livenessChecker struct {
	frame   Frame
	bus     SignalBus
	logger  hclog.Logger
	onStale func(ctx context.Context)

	mu       sync.Mutex
	url      string
	stop     chan struct{}
	unlisten func()
}

// Start begins polling the given check-session URL.  Calling Start again
// with the same URL leaves the running poller untouched; a different URL
// stops the old poller and arms a fresh one.
func (l *livenessChecker) Start(ctx context.Context, rawURL string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckSessionInterval
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil && l.url == rawURL {
		return
	}
	l.stopLocked()

	l.url = rawURL
	stop := make(chan struct{})
	l.stop = stop

	if unlisten, err := l.bus.Subscribe(func(sig Signal) {
		if sig.Type != SignalSessionChanged {
			return
		}
		if l.onStale != nil {
			go l.onStale(context.Background())
		}
	}); err == nil {
		l.unlisten = unlisten
	} else {
		l.logger.Warn("check-session signal subscription failed", "err", err)
	}

	go l.run(rawURL, interval, stop)
}

// Stop halts polling and drops the change-signal subscription.
func (l *livenessChecker) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

// Active reports whether a poller is currently running.
func (l *livenessChecker) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// URL returns the check-session URL being polled, or "" when stopped.
func (l *livenessChecker) URL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

func (l *livenessChecker) stopLocked() {
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
	if l.unlisten != nil {
		l.unlisten()
		l.unlisten = nil
	}
	l.url = ""
}

func (l *livenessChecker) run(rawURL string, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := l.frame.Navigate(context.Background(), rawURL); err != nil {
				l.logger.Warn("check-session poll failed", "url", rawURL, "err", err)
			}
		}
	}
}

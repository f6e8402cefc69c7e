package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/authcell/authcell/store"
)

// NoTimerHandle is the sentinel persisted when no refresh timer is
// scheduled.  Cancelling it is a no-op.
const NoTimerHandle = -1

// refreshLeeway is how far ahead of token expiry the refresh fires, so a
// renewed token is in place before the old one lapses.  Lifetimes at or
// below the leeway refresh exactly at expiry instead of immediately.
const refreshLeeway = 10 * time.Second

// RefreshScheduler arms at most one token refresh timer at a time.  The
// handle of the live timer is persisted in the session store so a
// subsequent schedule or cancel finds it even across controller
// instances sharing the store.
type RefreshScheduler struct {
	sessions store.SessionStore
	logger   hclog.Logger

	mu         sync.Mutex
	timers     map[int]*time.Timer
	nextHandle int
}

// NewRefreshScheduler creates a scheduler backed by the given store.
func NewRefreshScheduler(sessions store.SessionStore, opt ...Option) (*RefreshScheduler, error) {
	const op = "session.NewRefreshScheduler"
	if sessions == nil {
		return nil, fmt.Errorf("%s: session store: %w", op, ErrNilParameter)
	}
	opts := getClientOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RefreshScheduler{
		sessions: sessions,
		logger:   logger,
		timers:   map[int]*time.Timer{},
	}, nil
}

// ScheduleRefresh arms a timer that invokes onFire refreshLeeway before
// the remaining token lifetime elapses.  Any previously scheduled timer
// is cancelled first, so at most one timer is ever live.  The new
// timer's handle is persisted and returned.
func (s *RefreshScheduler) ScheduleRefresh(ctx context.Context, remaining time.Duration, onFire func()) (int, error) {
	const op = "session.(RefreshScheduler).ScheduleRefresh"
	if onFire == nil {
		return NoTimerHandle, fmt.Errorf("%s: onFire func: %w", op, ErrNilParameter)
	}
	if remaining <= 0 {
		return NoTimerHandle, fmt.Errorf("%s: remaining lifetime %v: %w", op, remaining, ErrInvalidParameter)
	}
	if err := s.Cancel(ctx); err != nil {
		return NoTimerHandle, fmt.Errorf("%s: %w", op, err)
	}

	delay := remaining
	if remaining > refreshLeeway {
		delay = remaining - refreshLeeway
	}

	s.mu.Lock()
	handle := s.nextHandle
	s.nextHandle++
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, handle)
		s.mu.Unlock()
		onFire()
	})
	s.mu.Unlock()

	if err := s.sessions.Set(ctx, store.KeyRefreshTimerHandle, strconv.Itoa(handle)); err != nil {
		s.stop(handle)
		return NoTimerHandle, fmt.Errorf("%s: persisting timer handle: %w", op, err)
	}
	s.logger.Debug("scheduled token refresh", "handle", handle, "delay", delay)
	return handle, nil
}

// Cancel stops a scheduled refresh timer.  With no argument it cancels
// whatever handle is persisted in the store; a persisted NoTimerHandle
// (or no persisted handle at all) makes it a no-op.  An explicit handle
// cancels that timer directly.
func (s *RefreshScheduler) Cancel(ctx context.Context, handle ...int) error {
	const op = "session.(RefreshScheduler).Cancel"
	h := NoTimerHandle
	if len(handle) > 0 {
		h = handle[0]
	} else {
		h = s.ScheduledHandle(ctx)
	}
	if h == NoTimerHandle {
		return nil
	}
	s.stop(h)
	if err := s.sessions.Set(ctx, store.KeyRefreshTimerHandle, strconv.Itoa(NoTimerHandle)); err != nil {
		return fmt.Errorf("%s: clearing timer handle: %w", op, err)
	}
	return nil
}

// ScheduledHandle returns the persisted handle of the live timer, or
// NoTimerHandle when none is scheduled.
func (s *RefreshScheduler) ScheduledHandle(ctx context.Context) int {
	v, err := s.sessions.Get(ctx, store.KeyRefreshTimerHandle)
	if err != nil {
		return NoTimerHandle
	}
	h, err := strconv.Atoi(v)
	if err != nil {
		return NoTimerHandle
	}
	return h
}

func (s *RefreshScheduler) stop(handle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
}

package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

// DefaultSilentSignInTimeout is the ceiling a silent sign-in attempt
// waits for the hidden frame to report back.
const DefaultSilentSignInTimeout = 10 * time.Second

// silentSignIn drives prompt=none reauthentication through a hidden
// frame.  It derives the authorization URL over the channel, parks the
// PKCE verifier under the request's state, navigates the frame, and
// waits for the frame's document to publish the outcome on the bus.
type silentSignIn struct {
	channel  *rpc.Channel
	sessions store.SessionStore
	frame    Frame
	bus      SignalBus
	exchange func(ctx context.Context, info rpc.AuthorizationInfo) (*rpc.BasicUserInfo, error)
	timeout  time.Duration
	logger   hclog.Logger

	mu       sync.Mutex
	unlisten func()
}

// trySignIn attempts a silent sign-in.  It returns (info, true, nil) when
// the provider still had a session and the code exchange succeeded, and
// (nil, false, nil) when the attempt timed out or the provider reported
// signed-out.  Only a failed exchange is an error.
func (s *silentSignIn) trySignIn(ctx context.Context) (*rpc.BasicUserInfo, bool, error) {
	const op = "session.(silentSignIn).trySignIn"

	authURL, err := s.authorizationURL(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	signals := make(chan Signal, 1)
	cancel, err := s.bus.Subscribe(func(sig Signal) {
		switch sig.Type {
		case SignalSignedIn, SignalSignedOut:
		default:
			return
		}
		select {
		case signals <- sig:
		default:
		}
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: subscribing for frame signals: %w", op, err)
	}
	var once sync.Once
	unlisten := func() { once.Do(cancel) }
	defer unlisten()
	s.setUnlisten(unlisten)

	if err := s.frame.Navigate(ctx, authURL); err != nil {
		return nil, false, fmt.Errorf("%s: navigating hidden frame: %w", op, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case sig := <-signals:
		if sig.Type == SignalSignedOut {
			return nil, false, nil
		}
		info, err := s.exchange(ctx, rpc.AuthorizationInfo{
			Code:         sig.Code,
			SessionState: sig.SessionState,
			State:        sig.State,
		})
		if err != nil {
			return nil, false, fmt.Errorf("%s: exchanging silent code: %w (%v)", op, ErrSilentReauthFailed, err)
		}
		return info, true, nil
	case <-timer.C:
		s.logger.Debug("silent sign-in timed out", "timeout", s.timeout)
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

// authorizationURL derives a prompt=none authorization URL carrying the
// reserved silent state, and parks the PKCE verifier for the exchange.
func (s *silentSignIn) authorizationURL(ctx context.Context) (string, error) {
	m, err := rpc.NewMessage(rpc.TypeGetAuthURL, rpc.AuthURLRequest{
		Params: map[string]string{
			"prompt":        "none",
			"state":         SilentSignInState,
			"response_mode": rpc.ResponseModeQuery,
		},
	})
	if err != nil {
		return "", err
	}
	var resp rpc.AuthURLResponse
	if err := s.channel.Send(ctx, m, &resp); err != nil {
		return "", err
	}
	if resp.PKCE != "" {
		state, err := stateOf(resp.AuthorizationURL)
		if err != nil {
			return "", err
		}
		if err := s.sessions.Set(ctx, store.PKCEKeyPrefix+state, resp.PKCE); err != nil {
			return "", err
		}
	}
	return resp.AuthorizationURL, nil
}

// reset drops any live frame listener, so a revoked session cannot be
// resurrected by a late signal.
func (s *silentSignIn) reset() {
	s.mu.Lock()
	unlisten := s.unlisten
	s.unlisten = nil
	s.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
}

func (s *silentSignIn) setUnlisten(fn func()) {
	s.mu.Lock()
	s.unlisten = fn
	s.mu.Unlock()
}

func stateOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	state := u.Query().Get("state")
	if state == "" {
		return "", fmt.Errorf("authorization url has no state parameter: %w", ErrInvalidParameter)
	}
	return state, nil
}

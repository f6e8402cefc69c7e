package session

import (
	"context"
	"fmt"
	"net/url"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

// SignIn drives the full sign-in sequence:
//
//  1. When this Client is the silent sign-in frame target, the redirect
//     outcome in the current URL is reported over the SignalBus and the
//     call returns without touching top-level state.
//  2. An error/error_description pair in the current URL is surfaced as
//     an *AuthorizationServerError, after stripping the parameters from
//     history so a reload does not replay it.
//  3. An already-authenticated session short-circuits: the refresh timer
//     is re-armed from the live status and the cached user info is
//     returned with no code exchange.
//  4. An authorization code, supplied via WithAuthorizationCode or found
//     in the current URL (and stripped from history), is exchanged for
//     tokens and the refresh timer armed.
//  5. Otherwise a fresh authorization URL is derived, its PKCE verifier
//     parked under the request state, and the browser navigated to it.
//     The call returns empty user info; the flow resumes when the
//     provider redirects back.
//
// Supported options: WithAuthorizationCode, WithSignInParams.
func (c *Client) SignIn(ctx context.Context, opt ...Option) (*rpc.BasicUserInfo, error) {
	const op = "session.(Client).SignIn"
	opts := getClientOpts(opt...)

	if c.silentTarget {
		if err := c.reportSilentResult(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &rpc.BasicUserInfo{}, nil
	}

	if err := c.surfaceRedirectError(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var status rpc.SessionStatus
	if err := c.send(ctx, rpc.TypeGetSessionStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if status.Authenticated {
		if err := c.armRefreshTimer(ctx, status.ExpiresIn, status.HasRefreshToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.startSessionManagement(ctx)
		info, err := c.GetBasicUserInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return info, nil
	}

	info := opts.withSignInInfo
	if info == nil {
		found, err := c.authorizationFromLocation()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		info = found
	}
	if info != nil && info.Code != "" {
		user, err := c.requestAccessToken(ctx, *info)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.startSessionManagement(ctx)
		return user, nil
	}

	var authResp rpc.AuthURLResponse
	if err := c.send(ctx, rpc.TypeGetAuthURL, rpc.AuthURLRequest{Params: opts.withSignInParams}, &authResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.parkVerifier(ctx, authResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := c.browser.Navigator.Navigate(ctx, authResp.AuthorizationURL); err != nil {
		return nil, fmt.Errorf("%s: navigating to authorization url: %w", op, err)
	}
	return &rpc.BasicUserInfo{}, nil
}

// reportSilentResult runs in the hidden frame after a prompt=none round
// trip: it reads the redirect outcome from the frame's URL and publishes
// it for the top-level controller waiting on the bus.
func (c *Client) reportSilentResult() error {
	u, err := c.browser.Location.Current()
	if err != nil {
		return fmt.Errorf("reading frame location: %w", err)
	}
	q := u.Query()
	if code := q.Get("code"); code != "" {
		c.browser.Bus.Publish(Signal{
			Type:         SignalSignedIn,
			Code:         code,
			SessionState: q.Get("session_state"),
			State:        q.Get("state"),
		})
		return nil
	}
	c.browser.Bus.Publish(Signal{Type: SignalSignedOut})
	return nil
}

// surfaceRedirectError turns an error landed in the redirect URL into an
// *AuthorizationServerError, stripping the parameters from history first.
func (c *Client) surfaceRedirectError() error {
	u, err := c.browser.Location.Current()
	if err != nil {
		return fmt.Errorf("reading location: %w", err)
	}
	q := u.Query()
	code := q.Get("error")
	if code == "" {
		return nil
	}
	desc := q.Get("error_description")
	q.Del("error")
	q.Del("error_description")
	q.Del("state")
	if err := c.replaceQuery(u, q); err != nil {
		return err
	}
	return &AuthorizationServerError{Code: code, Description: desc}
}

// authorizationFromLocation extracts an authorization response from the
// current URL, stripping the parameters from history so a reload cannot
// replay the code.  It returns nil when no code is present.
func (c *Client) authorizationFromLocation() (*rpc.AuthorizationInfo, error) {
	u, err := c.browser.Location.Current()
	if err != nil {
		return nil, fmt.Errorf("reading location: %w", err)
	}
	q := u.Query()
	code := q.Get("code")
	if code == "" {
		return nil, nil
	}
	info := &rpc.AuthorizationInfo{
		Code:         code,
		SessionState: q.Get("session_state"),
		State:        q.Get("state"),
	}
	q.Del("code")
	q.Del("session_state")
	q.Del("state")
	if err := c.replaceQuery(u, q); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) replaceQuery(u *url.URL, q url.Values) error {
	stripped := *u
	stripped.RawQuery = q.Encode()
	if err := c.browser.Location.Replace(&stripped); err != nil {
		return fmt.Errorf("rewriting history: %w", err)
	}
	return nil
}

// requestAccessToken exchanges an authorization response for tokens.  A
// parked PKCE verifier matching the response state is consumed exactly
// once; the refresh timer is armed from the worker's reply.
func (c *Client) requestAccessToken(ctx context.Context, info rpc.AuthorizationInfo) (*rpc.BasicUserInfo, error) {
	if info.PKCE == "" && info.State != "" {
		info.PKCE = c.consumeVerifier(ctx, info.State)
	}
	var resp rpc.TokenResponse
	if err := c.send(ctx, rpc.TypeRequestAccessToken, info, &resp); err != nil {
		return nil, err
	}
	if err := c.armRefreshTimer(ctx, resp.ExpiresIn, resp.HasRefreshToken); err != nil {
		return nil, err
	}
	return &resp.UserInfo, nil
}

// consumeVerifier returns the parked PKCE verifier for state, removing
// it so it cannot be replayed.  Absence is not an error: the flow may
// not have used PKCE.
func (c *Client) consumeVerifier(ctx context.Context, state string) string {
	key := store.PKCEKeyPrefix + state
	v, err := c.sessions.Get(ctx, key)
	if err != nil {
		return ""
	}
	if err := c.sessions.Remove(ctx, key); err != nil {
		c.logger.Warn("unable to remove consumed pkce verifier", "err", err)
	}
	return v
}

// parkVerifier stores the PKCE verifier for a derived authorization URL
// under the URL's state value, for the eventual code exchange.
func (c *Client) parkVerifier(ctx context.Context, resp rpc.AuthURLResponse) error {
	if resp.PKCE == "" {
		return nil
	}
	state, err := stateOf(resp.AuthorizationURL)
	if err != nil {
		return err
	}
	if err := c.sessions.Set(ctx, store.PKCEKeyPrefix+state, resp.PKCE); err != nil {
		return fmt.Errorf("parking pkce verifier: %w", err)
	}
	return nil
}

// startSessionManagement arms the check-session poller when the
// configuration enables it.  Failure is logged, not fatal: a missing
// check-session endpoint must not block sign-in.
func (c *Client) startSessionManagement(ctx context.Context) {
	if !c.configSnapshot().EnableSessionManagement {
		return
	}
	if err := c.CheckSession(ctx); err != nil {
		c.logger.Warn("unable to start session liveness checks", "err", err)
	}
}

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

// SignOut ends the session and navigates to the provider's sign-out URL.
// Normally the URL is fetched over the channel, which also clears the
// worker-side session; when a prior custom grant flagged
// SignOutURLFromSession, the cached URL is used instead.  The refresh
// timer and the liveness poller are always stopped.
func (c *Client) SignOut(ctx context.Context) error {
	const op = "session.(Client).SignOut"
	c.mu.Lock()
	fromStorage := c.signOutURLFromStorage
	c.mu.Unlock()

	var signOutURL string
	if fromStorage {
		cached, err := c.sessions.Get(ctx, store.KeySignOutURL)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return fmt.Errorf("%s: %w", op, ErrNoSignOutURL)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		signOutURL = cached
	} else {
		var resp rpc.SignOutResponse
		if err := c.send(ctx, rpc.TypeSignOut, nil, &resp); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		signOutURL = resp.SignOutURL
		if err := c.sessions.Set(ctx, store.KeySignOutURL, signOutURL); err != nil {
			c.logger.Warn("unable to cache sign-out url", "err", err)
		}
	}

	if err := c.scheduler.Cancel(ctx); err != nil {
		c.logger.Warn("unable to cancel refresh timer on sign-out", "err", err)
	}
	c.checker.Stop()
	c.silent.reset()

	if err := c.browser.Navigator.Navigate(ctx, signOutURL); err != nil {
		return fmt.Errorf("%s: navigating to sign-out url: %w", op, err)
	}
	return nil
}

// RefreshAccessToken exchanges the refresh token for fresh tokens and
// re-arms the refresh timer.  Concurrent calls collapse into a single
// in-flight refresh sharing one result.
func (c *Client) RefreshAccessToken(ctx context.Context) (*rpc.BasicUserInfo, error) {
	const op = "session.(Client).RefreshAccessToken"
	v, err, _ := c.refresh.Do("refresh-access-token", func() (interface{}, error) {
		var resp rpc.TokenResponse
		if err := c.send(ctx, rpc.TypeRefreshAccessToken, nil, &resp); err != nil {
			return nil, err
		}
		if err := c.armRefreshTimer(ctx, resp.ExpiresIn, resp.HasRefreshToken); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp := v.(*rpc.TokenResponse)
	return &resp.UserInfo, nil
}

// RevokeAccessToken revokes the current tokens at the provider and
// clears the worker-side session.  The refresh timer is cancelled and
// the silent orchestrator's frame state reset, so nothing fires for the
// dead session.
func (c *Client) RevokeAccessToken(ctx context.Context) error {
	const op = "session.(Client).RevokeAccessToken"
	if err := c.send(ctx, rpc.TypeRevokeAccessToken, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.scheduler.Cancel(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.silent.reset()
	return nil
}

// RequestCustomGrant executes a non-standard token grant in the worker.
// A grant that returns a session re-arms the refresh timer; a grant
// flagged SignOutURLFromSession switches sign-out to the cached URL.
func (c *Client) RequestCustomGrant(ctx context.Context, req rpc.CustomGrantRequest) (*rpc.CustomGrantResponse, error) {
	const op = "session.(Client).RequestCustomGrant"
	if req.ID == "" {
		return nil, fmt.Errorf("%s: grant id is empty: %w", op, ErrInvalidParameter)
	}
	var resp rpc.CustomGrantResponse
	if err := c.send(ctx, rpc.TypeRequestCustomGrant, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.SignOutURLFromSession {
		c.mu.Lock()
		c.signOutURLFromStorage = true
		c.mu.Unlock()
	}
	if resp.Session != nil {
		if err := c.armRefreshTimer(ctx, resp.Session.ExpiresIn, resp.Session.HasRefreshToken); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	return &resp, nil
}

// SetSessionState pushes a session_state observed by a hidden frame into
// the worker-side session.
func (c *Client) SetSessionState(ctx context.Context, sessionState string) error {
	const op = "session.(Client).SetSessionState"
	err := c.send(ctx, rpc.TypeSetSessionState, rpc.SetSessionStateRequest{SessionState: sessionState}, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsAuthenticated re-reads the worker-side session and reports whether a
// live access token is present.
func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	status, err := c.GetSessionStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.Authenticated, nil
}

// GetSessionStatus returns a snapshot of the worker-side session.
func (c *Client) GetSessionStatus(ctx context.Context) (*rpc.SessionStatus, error) {
	const op = "session.(Client).GetSessionStatus"
	var status rpc.SessionStatus
	if err := c.send(ctx, rpc.TypeGetSessionStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &status, nil
}

// GetBasicUserInfo returns the user claims from the current id_token.
func (c *Client) GetBasicUserInfo(ctx context.Context) (*rpc.BasicUserInfo, error) {
	const op = "session.(Client).GetBasicUserInfo"
	var info rpc.BasicUserInfo
	if err := c.send(ctx, rpc.TypeGetBasicUserInfo, nil, &info); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &info, nil
}

// GetDecodedIDToken returns the full claim set of the current id_token.
func (c *Client) GetDecodedIDToken(ctx context.Context) (map[string]interface{}, error) {
	const op = "session.(Client).GetDecodedIDToken"
	var claims map[string]interface{}
	if err := c.send(ctx, rpc.TypeGetDecodedIDToken, nil, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// GetIDToken returns the raw serialized id_token.
func (c *Client) GetIDToken(ctx context.Context) (string, error) {
	const op = "session.(Client).GetIDToken"
	var payload map[string]string
	if err := c.send(ctx, rpc.TypeGetIDToken, nil, &payload); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return payload["id_token"], nil
}

// GetOIDCServiceEndpoints returns the provider endpoints resolved by
// discovery.
func (c *Client) GetOIDCServiceEndpoints(ctx context.Context) (*rpc.ServiceEndpoints, error) {
	const op = "session.(Client).GetOIDCServiceEndpoints"
	var endpoints rpc.ServiceEndpoints
	if err := c.send(ctx, rpc.TypeGetServiceEndpoints, nil, &endpoints); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &endpoints, nil
}

// GetConfigData returns the worker's effective configuration.
func (c *Client) GetConfigData(ctx context.Context) (*rpc.ClientConfig, error) {
	const op = "session.(Client).GetConfigData"
	var cfg rpc.ClientConfig
	if err := c.send(ctx, rpc.TypeGetConfigData, nil, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// GetSignOutURL returns the provider sign-out URL without clearing the
// session.
func (c *Client) GetSignOutURL(ctx context.Context) (string, error) {
	const op = "session.(Client).GetSignOutURL"
	var resp rpc.SignOutResponse
	if err := c.send(ctx, rpc.TypeGetSignOutURL, nil, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return resp.SignOutURL, nil
}

// HTTPRequest proxies one API call through the worker so the access
// token never crosses into the host context.
func (c *Client) HTTPRequest(ctx context.Context, req rpc.HTTPRequest) (*rpc.HTTPResponse, error) {
	const op = "session.(Client).HTTPRequest"
	var resp rpc.HTTPResponse
	if err := c.send(ctx, rpc.TypeHTTPRequest, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// HTTPRequestAll proxies a batch of API calls through the worker.  The
// bodies arrive inside the payload rather than as a blob, so they are
// unpacked from the wire form here.
func (c *Client) HTTPRequestAll(ctx context.Context, reqs []rpc.HTTPRequest) ([]*rpc.HTTPResponse, error) {
	const op = "session.(Client).HTTPRequestAll"
	var batch []*rpc.BatchHTTPResponse
	if err := c.send(ctx, rpc.TypeHTTPRequestAll, reqs, &batch); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resps := make([]*rpc.HTTPResponse, 0, len(batch))
	for _, r := range batch {
		resps = append(resps, r.Response())
	}
	return resps, nil
}

// EnableHTTPHandler turns on the worker's request lifecycle
// notifications for proxied calls.
func (c *Client) EnableHTTPHandler(ctx context.Context) error {
	const op = "session.(Client).EnableHTTPHandler"
	if err := c.send(ctx, rpc.TypeEnableHTTPHandler, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DisableHTTPHandler turns the notifications back off.
func (c *Client) DisableHTTPHandler(ctx context.Context) error {
	const op = "session.(Client).DisableHTTPHandler"
	if err := c.send(ctx, rpc.TypeDisableHTTPHandler, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

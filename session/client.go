package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

// Hooks are optional callbacks invoked when the worker reports proxied
// HTTP request lifecycle events.  Nil hooks are simply skipped.
type Hooks struct {
	OnHTTPRequestStart   func()
	OnHTTPRequestFinish  func()
	OnHTTPRequestSuccess func()
	OnHTTPRequestError   func()
}

func invoke(fn func()) {
	if fn != nil {
		fn()
	}
}

// Client is the host-side session lifecycle controller.  It owns the
// correlated channel to the worker, the refresh timer, the silent
// reauthentication orchestrator and the check-session liveness poller.
// All token state lives on the worker side; the Client's own store only
// holds PKCE verifiers, the timer handle and the cached sign-out URL.
type Client struct {
	channel   *rpc.Channel
	sessions  store.SessionStore
	browser   Browser
	scheduler *RefreshScheduler
	silent    *silentSignIn
	checker   *livenessChecker
	logger    hclog.Logger
	refresh   singleflight.Group

	mu                    sync.Mutex
	config                rpc.ClientConfig
	hooks                 Hooks
	initialized           bool
	silentTarget          bool
	signOutURLFromStorage bool
}

// New creates a Client over the given transport.  The configuration is
// validated here but only shipped to the worker by Initialize.
func New(t rpc.Transport, cfg rpc.ClientConfig, browser Browser, opt ...Option) (*Client, error) {
	const op = "session.New"
	if t == nil {
		return nil, fmt.Errorf("%s: transport: %w", op, ErrNilParameter)
	}
	if err := browser.validate(); err != nil {
		return nil, fmt.Errorf("%s: browser hooks: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getClientOpts(opt...)
	logger := opts.withLogger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	sessions := opts.withSessionStore
	if sessions == nil {
		sessions = store.NewMemory()
	}

	chOpts := []rpc.Option{rpc.WithLogger(logger)}
	if opts.withRequestTimeout > 0 {
		chOpts = append(chOpts, rpc.WithTimeout(opts.withRequestTimeout))
	}
	channel, err := rpc.New(t, chOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	scheduler, err := NewRefreshScheduler(sessions, WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := &Client{
		channel:      channel,
		sessions:     sessions,
		browser:      browser,
		scheduler:    scheduler,
		logger:       logger,
		config:       cfg,
		hooks:        opts.withSignInHooks,
		silentTarget: opts.withSilentTarget,
	}
	c.silent = &silentSignIn{
		channel:  channel,
		sessions: sessions,
		frame:    browser.Frame,
		bus:      browser.Bus,
		exchange: c.requestAccessToken,
		timeout:  opts.withSilentTimeout,
		logger:   logger,
	}
	c.checker = &livenessChecker{
		frame:  browser.CheckSessionFrame,
		bus:    browser.Bus,
		logger: logger,
		onStale: func(ctx context.Context) {
			if _, ok, err := c.TrySignInSilently(ctx); err != nil || !ok {
				c.logger.Debug("session changed and silent recovery did not sign in", "ok", ok, "err", err)
			}
		},
	}
	return c, nil
}

// Initialize performs the one-time handshake: it registers the
// notification handler, starts the notification pump and ships the
// configuration to the worker.  Calling it again is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	const op = "session.(Client).Initialize"
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	cfg := c.config
	c.mu.Unlock()

	c.channel.SetNotificationHandler(c.onNotification)
	c.channel.StartNotifications(ctx)
	if err := c.send(ctx, rpc.TypeInit, cfg, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// SetHooks replaces the request lifecycle hooks.  Nil members are
// skipped at invocation time rather than rejected here.
func (c *Client) SetHooks(h Hooks) {
	c.mu.Lock()
	c.hooks = h
	c.mu.Unlock()
}

func (c *Client) onNotification(m rpc.Message) {
	c.mu.Lock()
	hooks := c.hooks
	c.mu.Unlock()
	switch m.Type {
	case rpc.TypeRequestStart:
		invoke(hooks.OnHTTPRequestStart)
	case rpc.TypeRequestFinish:
		invoke(hooks.OnHTTPRequestFinish)
	case rpc.TypeRequestSuccess:
		invoke(hooks.OnHTTPRequestSuccess)
	case rpc.TypeRequestError:
		invoke(hooks.OnHTTPRequestError)
	default:
		c.logger.Debug("unrecognized notification", "type", m.Type)
	}
}

// UpdateConfig merges the given partial configuration over the current
// one and ships the result to the worker.  String, slice and integer
// fields only override when set; boolean fields always take the
// partial's value.  The check-session poller is restarted only when the
// effective check-session URL actually changed.
func (c *Client) UpdateConfig(ctx context.Context, partial rpc.ClientConfig) error {
	const op = "session.(Client).UpdateConfig"
	c.mu.Lock()
	merged := mergeConfig(c.config, partial)
	c.mu.Unlock()
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.send(ctx, rpc.TypeUpdateConfig, merged, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.mu.Lock()
	c.config = merged
	c.mu.Unlock()

	if c.checker.Active() {
		if err := c.CheckSession(ctx); err != nil {
			return fmt.Errorf("%s: re-arming check-session poller: %w", op, err)
		}
	}
	return nil
}

// CheckSession starts (or re-points) the periodic provider session
// liveness poller.  The check-session URL comes from the configuration
// override when set, otherwise from the discovered provider metadata.
func (c *Client) CheckSession(ctx context.Context) error {
	const op = "session.(Client).CheckSession"
	cfg, err := c.GetConfigData(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	checkURL := cfg.CheckSessionIframeURL
	if checkURL == "" {
		endpoints, err := c.GetOIDCServiceEndpoints(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		checkURL = endpoints.CheckSessionIframe
	}
	if checkURL == "" {
		return fmt.Errorf("%s: provider exposes no check-session endpoint: %w", op, ErrInvalidParameter)
	}
	interval := time.Duration(cfg.CheckSessionIntervalSeconds) * time.Second
	c.checker.Start(ctx, checkURL, interval)
	return nil
}

// TrySignInSilently attempts a prompt=none reauthentication through the
// hidden frame.  It returns ok=false without error when the attempt
// timed out or the provider reported signed-out.
func (c *Client) TrySignInSilently(ctx context.Context) (*rpc.BasicUserInfo, bool, error) {
	return c.silent.trySignIn(ctx)
}

func (c *Client) send(ctx context.Context, t rpc.MessageType, payload, result interface{}) error {
	m, err := rpc.NewMessage(t, payload)
	if err != nil {
		return err
	}
	return c.channel.Send(ctx, m, result)
}

func (c *Client) configSnapshot() rpc.ClientConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// armRefreshTimer schedules the next refresh from a token response.  No
// refresh token means no timer: there is nothing to refresh with.
func (c *Client) armRefreshTimer(ctx context.Context, expiresIn int64, hasRefreshToken bool) error {
	if !hasRefreshToken || expiresIn <= 0 {
		return nil
	}
	_, err := c.scheduler.ScheduleRefresh(ctx, time.Duration(expiresIn)*time.Second, func() {
		if _, err := c.RefreshAccessToken(context.Background()); err != nil {
			c.logger.Error("scheduled token refresh failed", "err", err)
		}
	})
	return err
}

// mergeConfig lays partial over base.  Zero-valued string, slice and
// integer fields keep the base value; booleans always come from partial.
func mergeConfig(base, partial rpc.ClientConfig) rpc.ClientConfig {
	merged := base
	if partial.ClientID != "" {
		merged.ClientID = partial.ClientID
	}
	if partial.ClientSecret != "" {
		merged.ClientSecret = partial.ClientSecret
	}
	if partial.Issuer != "" {
		merged.Issuer = partial.Issuer
	}
	if partial.SignInRedirectURL != "" {
		merged.SignInRedirectURL = partial.SignInRedirectURL
	}
	if partial.SignOutRedirectURL != "" {
		merged.SignOutRedirectURL = partial.SignOutRedirectURL
	}
	if len(partial.Scopes) > 0 {
		merged.Scopes = partial.Scopes
	}
	if partial.ResponseMode != "" {
		merged.ResponseMode = partial.ResponseMode
	}
	if partial.Prompt != "" {
		merged.Prompt = partial.Prompt
	}
	if partial.CheckSessionIframeURL != "" {
		merged.CheckSessionIframeURL = partial.CheckSessionIframeURL
	}
	if partial.CheckSessionIntervalSeconds > 0 {
		merged.CheckSessionIntervalSeconds = partial.CheckSessionIntervalSeconds
	}
	merged.EnablePKCE = partial.EnablePKCE
	merged.EnableSessionManagement = partial.EnableSessionManagement
	return merged
}

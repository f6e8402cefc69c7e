package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-uuid"
	"golang.org/x/oauth2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// OIDCEngine is the default Engine: a 3-legged OIDC authorization code flow
// against a discovered provider, with the session persisted in a
// SessionStore.  The store, not the struct, is the source of truth for token
// state; every operation re-reads it.
type OIDCEngine struct {
	sessions store.SessionStore
	logger   hclog.Logger
	client   *http.Client

	mu        sync.RWMutex
	config    *rpc.ClientConfig
	provider  *oidc.Provider
	endpoints rpc.ServiceEndpoints
}

// ensure that OIDCEngine implements the Engine interface
var _ Engine = (*OIDCEngine)(nil)

// NewOIDCEngine creates an engine that persists its session in sessions.
// Supported options: WithLogger, WithHTTPClient.
func NewOIDCEngine(sessions store.SessionStore, opt ...Option) (*OIDCEngine, error) {
	const op = "worker.NewOIDCEngine"
	if sessions == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	}
	opts := getOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &OIDCEngine{
		sessions: sessions,
		logger:   opts.withLogger,
		client:   client,
	}, nil
}

// providerMetadata is the slice of discovery metadata go-oidc does not
// surface through Endpoint().
type providerMetadata struct {
	UserinfoEndpoint   string `json:"userinfo_endpoint"`
	JwksURI            string `json:"jwks_uri"`
	RevocationEndpoint string `json:"revocation_endpoint"`
	EndSessionEndpoint string `json:"end_session_endpoint"`
	CheckSessionIframe string `json:"check_session_iframe"`
}

// Initialize validates the config and runs provider discovery.  It must
// complete before any other operation.
func (e *OIDCEngine) Initialize(ctx context.Context, cfg rpc.ClientConfig) error {
	const op = "worker.(OIDCEngine).Initialize"
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: invalid config: %w", op, err)
	}

	provider, err := oidc.NewProvider(e.clientCtx(ctx), cfg.Issuer)
	if err != nil {
		return fmt.Errorf("%s: unable to discover provider: %w", op, err)
	}
	var meta providerMetadata
	if err := provider.Claims(&meta); err != nil {
		return fmt.Errorf("%s: unable to read provider metadata: %w", op, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = &cfg
	e.provider = provider
	e.endpoints = rpc.ServiceEndpoints{
		Issuer:                cfg.Issuer,
		AuthorizationEndpoint: provider.Endpoint().AuthURL,
		TokenEndpoint:         provider.Endpoint().TokenURL,
		UserinfoEndpoint:      meta.UserinfoEndpoint,
		JwksURI:               meta.JwksURI,
		RevocationEndpoint:    meta.RevocationEndpoint,
		EndSessionEndpoint:    meta.EndSessionEndpoint,
		CheckSessionIframe:    meta.CheckSessionIframe,
	}
	e.logger.Debug("engine initialized", "issuer", cfg.Issuer, "client_id", cfg.ClientID)
	return nil
}

// UpdateConfig replaces the current configuration.  The host sends the
// already-merged config, so no merge happens here.  Discovery is re-run only
// when the issuer changed.
func (e *OIDCEngine) UpdateConfig(ctx context.Context, cfg rpc.ClientConfig) error {
	const op = "worker.(OIDCEngine).UpdateConfig"
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: invalid config: %w", op, err)
	}
	e.mu.RLock()
	current := e.config
	e.mu.RUnlock()
	if current == nil {
		return fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	if current.Issuer != cfg.Issuer {
		return e.Initialize(ctx, cfg)
	}
	e.mu.Lock()
	e.config = &cfg
	e.mu.Unlock()
	return nil
}

func (e *OIDCEngine) snapshot() (*rpc.ClientConfig, *oidc.Provider, rpc.ServiceEndpoints, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.config == nil || e.provider == nil {
		return nil, nil, rpc.ServiceEndpoints{}, ErrNotInitialized
	}
	return e.config, e.provider, e.endpoints, nil
}

// clientCtx carries the engine's http client in a context understood by both
// go-oidc and oauth2.
func (e *OIDCEngine) clientCtx(ctx context.Context) context.Context {
	return oidc.ClientContext(ctx, e.client)
}

func (e *OIDCEngine) oauthConfig(cfg *rpc.ClientConfig, provider *oidc.Provider) *oauth2.Config {
	scopes := []string{oidc.ScopeOpenID}
	for _, s := range cfg.Scopes {
		if s != oidc.ScopeOpenID {
			scopes = append(scopes, s)
		}
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURL:  cfg.SignInRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       scopes,
	}
}

// AuthorizationURL builds an authorization URL.  Request params override the
// configured prompt/response_mode defaults; a missing state gets a generated
// one.  With PKCE enabled the challenge rides the URL and the verifier is
// returned for the host to correlate with the later exchange.
func (e *OIDCEngine) AuthorizationURL(_ context.Context, req rpc.AuthURLRequest) (*rpc.AuthURLResponse, error) {
	const op = "worker.(OIDCEngine).AuthorizationURL"
	cfg, provider, _, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := map[string]string{}
	if cfg.ResponseMode != "" {
		params["response_mode"] = cfg.ResponseMode
	}
	if cfg.Prompt != "" {
		params["prompt"] = cfg.Prompt
	}
	for k, v := range req.Params {
		params[k] = v
	}

	state := params["state"]
	delete(params, "state")
	if state == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to generate state: %w", op, err)
		}
		state = "request_" + id
	}

	authOpts := make([]oauth2.AuthCodeOption, 0, len(params)+2)
	for k, v := range params {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}

	resp := &rpc.AuthURLResponse{}
	if cfg.EnablePKCE {
		verifier, err := NewCodeVerifier()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create code verifier: %w", op, err)
		}
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("code_challenge", verifier.Challenge()),
			oauth2.SetAuthURLParam("code_challenge_method", string(verifier.Method())),
		)
		resp.PKCE = verifier.Verifier()
	}
	resp.AuthorizationURL = e.oauthConfig(cfg, provider).AuthCodeURL(state, authOpts...)
	return resp, nil
}

// RequestAccessToken exchanges the authorization code, verifies the returned
// id_token and persists the session.
func (e *OIDCEngine) RequestAccessToken(ctx context.Context, info rpc.AuthorizationInfo) (*rpc.TokenResponse, error) {
	const op = "worker.(OIDCEngine).RequestAccessToken"
	cfg, provider, _, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if info.Code == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	var exchangeOpts []oauth2.AuthCodeOption
	if info.PKCE != "" {
		exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam("code_verifier", info.PKCE))
	}
	tok, err := e.oauthConfig(cfg, provider).Exchange(e.clientCtx(ctx), info.Code, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIdToken)
	}
	if _, err := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}).Verify(e.clientCtx(ctx), rawIDToken); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}

	if err := e.saveSession(ctx, tok, rawIDToken, info.SessionState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e.tokenResponse(ctx)
}

// RefreshAccessToken renews the session with the stored refresh token.  The
// provider may rotate the refresh token and may omit a fresh id_token; in
// the latter case the stored one stays.
func (e *OIDCEngine) RefreshAccessToken(ctx context.Context) (*rpc.TokenResponse, error) {
	const op = "worker.(OIDCEngine).RefreshAccessToken"
	cfg, provider, _, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	refreshToken, err := e.sessions.Get(ctx, store.KeyRefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoRefreshToken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ts := e.oauthConfig(cfg, provider).TokenSource(e.clientCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to refresh access token: %w", op, err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	if rawIDToken != "" {
		if _, err := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}).Verify(e.clientCtx(ctx), rawIDToken); err != nil {
			return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
		}
	}
	if err := e.saveSession(ctx, tok, rawIDToken, ""); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e.tokenResponse(ctx)
}

// RevokeAccessToken revokes the current access token (RFC 7009) and clears
// the session.
func (e *OIDCEngine) RevokeAccessToken(ctx context.Context) error {
	const op = "worker.(OIDCEngine).RevokeAccessToken"
	cfg, _, endpoints, err := e.snapshot()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if endpoints.RevocationEndpoint == "" {
		return fmt.Errorf("%s: provider has no revocation endpoint: %w", op, ErrRevocationFailed)
	}
	accessToken, err := e.sessions.Get(ctx, store.KeyAccessToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNoSession)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoints.RevocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%s: unable to create revocation request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(cfg.ClientID, string(cfg.ClientSecret))

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: revocation request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: provider returned %d: %w", op, resp.StatusCode, ErrRevocationFailed)
	}
	if err := e.clearSession(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CustomGrant posts a token request outside the standard grants.  Values in
// req.Data support the "{{token}}" placeholder, replaced with the current
// access token.
func (e *OIDCEngine) CustomGrant(ctx context.Context, req rpc.CustomGrantRequest) (*rpc.CustomGrantResponse, error) {
	const op = "worker.(OIDCEngine).CustomGrant"
	cfg, _, endpoints, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := e.sessions.Get(ctx, store.KeyAccessToken)
	if err != nil && !errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	form := url.Values{}
	for k, v := range req.Data {
		form.Set(k, strings.ReplaceAll(v, "{{token}}", accessToken))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoints.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create grant request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if req.AttachToken {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		httpReq.SetBasicAuth(cfg.ClientID, string(cfg.ClientSecret))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: grant request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read grant response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: provider returned %d: %w", op, resp.StatusCode, ErrCustomGrantFailed)
	}

	out := &rpc.CustomGrantResponse{Raw: body}
	if req.ReturnsSession {
		var grant struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			IDToken      string `json:"id_token"`
			ExpiresIn    int64  `json:"expires_in"`
			Scope        string `json:"scope"`
		}
		if err := json.Unmarshal(body, &grant); err != nil {
			return nil, fmt.Errorf("%s: unable to decode grant session: %w", op, err)
		}
		tok := &oauth2.Token{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
			Expiry:       time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second),
		}
		if err := e.saveSession(ctx, tok, grant.IDToken, ""); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		session, err := e.tokenResponse(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Session = session
	}
	return out, nil
}

// SignOut clears the session and returns the provider sign-out URL.
func (e *OIDCEngine) SignOut(ctx context.Context) (string, error) {
	const op = "worker.(OIDCEngine).SignOut"
	signOutURL, err := e.SignOutURL(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := e.clearSession(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signOutURL, nil
}

// SignOutURL builds the end-session URL with the id_token hint and the
// post-logout redirect.
func (e *OIDCEngine) SignOutURL(ctx context.Context) (string, error) {
	const op = "worker.(OIDCEngine).SignOutURL"
	cfg, _, endpoints, err := e.snapshot()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if endpoints.EndSessionEndpoint == "" {
		return "", fmt.Errorf("%s: provider has no end_session_endpoint: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(endpoints.EndSessionEndpoint)
	if err != nil {
		return "", fmt.Errorf("%s: invalid end_session_endpoint: %w", op, err)
	}
	q := u.Query()
	if rawIDToken, err := e.sessions.Get(ctx, store.KeyIDToken); err == nil {
		q.Set("id_token_hint", rawIDToken)
	}
	redirect := cfg.SignOutRedirectURL
	if redirect == "" {
		redirect = cfg.SignInRedirectURL
	}
	q.Set("post_logout_redirect_uri", redirect)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SetSessionState records an updated session_state value.
func (e *OIDCEngine) SetSessionState(ctx context.Context, sessionState string) error {
	const op = "worker.(OIDCEngine).SetSessionState"
	if err := e.sessions.Set(ctx, store.KeySessionState, sessionState); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SessionStatus reports the current session snapshot, always from the
// store.
func (e *OIDCEngine) SessionStatus(ctx context.Context) (*rpc.SessionStatus, error) {
	const op = "worker.(OIDCEngine).SessionStatus"
	accessToken, err := e.sessions.Get(ctx, store.KeyAccessToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return &rpc.SessionStatus{}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	status := &rpc.SessionStatus{}
	if expiresAt, err := e.sessions.Get(ctx, store.KeyExpiresAt); err == nil {
		if unix, err := strconv.ParseInt(expiresAt, 10, 64); err == nil {
			status.ExpiresIn = unix - time.Now().Unix()
		}
	}
	status.Authenticated = accessToken != "" && status.ExpiresIn > 0
	if _, err := e.sessions.Get(ctx, store.KeyRefreshToken); err == nil {
		status.HasRefreshToken = true
	}
	if sessionState, err := e.sessions.Get(ctx, store.KeySessionState); err == nil {
		status.SessionState = sessionState
	}
	return status, nil
}

// idTokenClaims is the subset of claims surfaced as BasicUserInfo.
type idTokenClaims struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
}

// BasicUserInfo returns claims from the stored id_token.  The token was
// verified when the session was saved, so an unverified parse here reads
// data this engine already trusted.
func (e *OIDCEngine) BasicUserInfo(ctx context.Context) (*rpc.BasicUserInfo, error) {
	const op = "worker.(OIDCEngine).BasicUserInfo"
	rawIDToken, err := e.sessions.Get(ctx, store.KeyIDToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := jwt.ParseSigned(rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token: %w", op, err)
	}
	var claims idTokenClaims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}

	info := &rpc.BasicUserInfo{
		Sub:         claims.Sub,
		Username:    claims.PreferredUsername,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}
	if info.Username == "" {
		info.Username = claims.Username
	}
	if scopes, err := e.sessions.Get(ctx, store.KeyAllowedScopes); err == nil {
		info.AllowedScopes = scopes
	}
	if sessionState, err := e.sessions.Get(ctx, store.KeySessionState); err == nil {
		info.SessionState = sessionState
	}
	return info, nil
}

// DecodedIDToken returns all claims of the stored id_token.
func (e *OIDCEngine) DecodedIDToken(ctx context.Context) (map[string]interface{}, error) {
	const op = "worker.(OIDCEngine).DecodedIDToken"
	rawIDToken, err := e.sessions.Get(ctx, store.KeyIDToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := jwt.ParseSigned(rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse id_token: %w", op, err)
	}
	var claims map[string]interface{}
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}
	return claims, nil
}

// IDToken returns the raw stored id_token.
func (e *OIDCEngine) IDToken(ctx context.Context) (string, error) {
	const op = "worker.(OIDCEngine).IDToken"
	rawIDToken, err := e.sessions.Get(ctx, store.KeyIDToken)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return "", fmt.Errorf("%s: %w", op, ErrNoSession)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return rawIDToken, nil
}

// ServiceEndpoints returns the endpoints resolved at discovery.
func (e *OIDCEngine) ServiceEndpoints(_ context.Context) (*rpc.ServiceEndpoints, error) {
	const op = "worker.(OIDCEngine).ServiceEndpoints"
	_, _, endpoints, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &endpoints, nil
}

// ConfigData returns a copy of the current configuration.
func (e *OIDCEngine) ConfigData(_ context.Context) (*rpc.ClientConfig, error) {
	const op = "worker.(OIDCEngine).ConfigData"
	cfg, _, _, err := e.snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := *cfg
	return &out, nil
}

// HTTPRequest executes a proxied API call.  The access token never crosses
// the boundary: it is attached here, in the worker context.
func (e *OIDCEngine) HTTPRequest(ctx context.Context, req rpc.HTTPRequest) (*rpc.HTTPResponse, error) {
	const op = "worker.(OIDCEngine).HTTPRequest"
	if req.URL == "" {
		return nil, fmt.Errorf("%s: url is empty: %w", op, ErrInvalidParameter)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create request: %w", op, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.AttachToken {
		accessToken, err := e.sessions.Get(ctx, store.KeyAccessToken)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to read response body: %w", op, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	return &rpc.HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       body,
	}, nil
}

// saveSession persists a token response.  An empty rawIDToken or
// sessionState keeps the stored value.
func (e *OIDCEngine) saveSession(ctx context.Context, tok *oauth2.Token, rawIDToken string, sessionState string) error {
	const op = "worker.(OIDCEngine).saveSession"
	if err := e.sessions.Set(ctx, store.KeyAccessToken, tok.AccessToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tok.RefreshToken != "" {
		if err := e.sessions.Set(ctx, store.KeyRefreshToken, tok.RefreshToken); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if !tok.Expiry.IsZero() {
		if err := e.sessions.Set(ctx, store.KeyExpiresAt, strconv.FormatInt(tok.Expiry.Unix(), 10)); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if rawIDToken != "" {
		if err := e.sessions.Set(ctx, store.KeyIDToken, rawIDToken); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if sessionState != "" {
		if err := e.sessions.Set(ctx, store.KeySessionState, sessionState); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		if err := e.sessions.Set(ctx, store.KeyAllowedScopes, scope); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func (e *OIDCEngine) clearSession(ctx context.Context) error {
	const op = "worker.(OIDCEngine).clearSession"
	keys := []string{
		store.KeyAccessToken,
		store.KeyRefreshToken,
		store.KeyIDToken,
		store.KeyExpiresAt,
		store.KeySessionState,
		store.KeyAllowedScopes,
	}
	for _, k := range keys {
		if err := e.sessions.Remove(ctx, k); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// tokenResponse builds the host-facing view of the session just saved.
func (e *OIDCEngine) tokenResponse(ctx context.Context) (*rpc.TokenResponse, error) {
	const op = "worker.(OIDCEngine).tokenResponse"
	status, err := e.SessionStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	info, err := e.BasicUserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rpc.TokenResponse{
		UserInfo:        *info,
		ExpiresIn:       status.ExpiresIn,
		HasRefreshToken: status.HasRefreshToken,
		SessionState:    status.SessionState,
	}, nil
}

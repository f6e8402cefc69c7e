package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ClientSecret is a relying party secret that redacts itself from logs and
// serialized debug output.  It still serializes normally across the
// boundary because both contexts belong to the same trust domain.
type ClientSecret string

// RedactedClientSecret is the redacted string for an oauth client secret.
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret.
func (s ClientSecret) String() string {
	return RedactedClientSecret
}

// ClientConfig is the configuration a host context pushes to the worker with
// TypeInit, and partially with TypeUpdateConfig.
type ClientConfig struct {
	// ClientID is the relying party id.
	ClientID string `json:"client_id"`

	// ClientSecret is the relying party secret, empty for public clients.
	ClientSecret ClientSecret `json:"client_secret,omitempty"`

	// Issuer is the provider's issuer URL used for discovery.
	Issuer string `json:"issuer"`

	// SignInRedirectURL is where the provider redirects after
	// authentication.
	SignInRedirectURL string `json:"sign_in_redirect_url"`

	// SignOutRedirectURL is where the provider redirects after sign-out.
	SignOutRedirectURL string `json:"sign_out_redirect_url,omitempty"`

	// Scopes is a list of additional oidc scopes to request of the
	// provider.  The required "openid" scope is always requested.
	Scopes []string `json:"scopes,omitempty"`

	// ResponseMode is the response_mode for authorization requests, either
	// "query" or "form_post".  Silent sign-in always rewrites it to
	// "query" because results are read from the iframe's own URL.
	ResponseMode string `json:"response_mode,omitempty"`

	// Prompt is the prompt parameter for authorization requests.
	Prompt string `json:"prompt,omitempty"`

	// EnablePKCE turns on verifier/challenge generation for authorization
	// requests.
	EnablePKCE bool `json:"enable_pkce"`

	// EnableSessionManagement turns on the periodic session-liveness check
	// against the provider's check-session iframe.
	EnableSessionManagement bool `json:"enable_session_management,omitempty"`

	// CheckSessionIframeURL overrides the check-session iframe URL
	// discovered from the provider metadata.
	CheckSessionIframeURL string `json:"check_session_iframe_url,omitempty"`

	// CheckSessionIntervalSeconds is the period of the session-liveness
	// check.  Zero means the package default.
	CheckSessionIntervalSeconds int `json:"check_session_interval_seconds,omitempty"`
}

// Validate verifies the configuration is complete enough to initialize the
// worker-side engine.  All violations are reported together, not just the
// first.
func (c *ClientConfig) Validate() error {
	const op = "rpc.(ClientConfig).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter))
	}
	if c.SignInRedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("%s: sign-in redirect URL is empty: %w", op, ErrInvalidParameter))
	}
	switch c.ResponseMode {
	case "", ResponseModeQuery, ResponseModeFormPost:
	default:
		result = multierror.Append(result, fmt.Errorf("%s: unsupported response_mode %q: %w", op, c.ResponseMode, ErrInvalidParameter))
	}
	if c.CheckSessionIntervalSeconds < 0 {
		result = multierror.Append(result, fmt.Errorf("%s: check-session interval is negative: %w", op, ErrInvalidParameter))
	}
	return result.ErrorOrNil()
}

// Supported response_mode values for authorization requests.
const (
	ResponseModeQuery    = "query"
	ResponseModeFormPost = "form_post"
)

// ServiceEndpoints are the provider endpoints the worker resolved via
// discovery, returned for TypeGetServiceEndpoints.
type ServiceEndpoints struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
	JwksURI               string `json:"jwks_uri,omitempty"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
	CheckSessionIframe    string `json:"check_session_iframe,omitempty"`
}

// AuthURLRequest asks the worker for an authorization URL.  Params are extra
// query parameters merged over the configured defaults, so a caller can
// force prompt=none or pin a reserved state value.
type AuthURLRequest struct {
	Params map[string]string `json:"params,omitempty"`
}

// AuthURLResponse carries the authorization URL and, when PKCE is enabled,
// the code verifier the host must hold until the matching code exchange.
type AuthURLResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	PKCE             string `json:"pkce,omitempty"`
}

// AuthorizationInfo correlates an authorization-code redirect or iframe
// signal back to its pending flow.  The PKCE verifier is looked up by the
// host using the correlation key embedded in State.
type AuthorizationInfo struct {
	Code         string `json:"code"`
	SessionState string `json:"session_state,omitempty"`
	State        string `json:"state,omitempty"`
	PKCE         string `json:"pkce,omitempty"`
}

// BasicUserInfo is the subset of id_token claims surfaced to callers.
type BasicUserInfo struct {
	Sub           string `json:"sub,omitempty"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	AllowedScopes string `json:"allowed_scopes,omitempty"`
	SessionState  string `json:"session_state,omitempty"`
}

// TokenResponse is the worker's reply to a code exchange or refresh.  It
// carries what the host needs to (re)arm the refresh timer without another
// round trip.
type TokenResponse struct {
	UserInfo BasicUserInfo `json:"user_info"`

	// ExpiresIn is the access token's remaining lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// HasRefreshToken reports whether the worker holds a refresh token.  A
	// refresh timer is only armed when it does.
	HasRefreshToken bool `json:"has_refresh_token"`

	SessionState string `json:"session_state,omitempty"`
}

// SessionStatus is a snapshot of the worker-side session, the single source
// of truth re-read before the host acts on authentication state.
type SessionStatus struct {
	Authenticated   bool   `json:"authenticated"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	HasRefreshToken bool   `json:"has_refresh_token,omitempty"`
	SessionState    string `json:"session_state,omitempty"`
}

// CustomGrantRequest describes a token request outside the standard grants.
// Data values support the "{{token}}" placeholder which the worker replaces
// with the current access token before sending.
type CustomGrantRequest struct {
	ID   string            `json:"id"`
	Data map[string]string `json:"data,omitempty"`

	// AttachToken sends the current access token as a bearer header.
	AttachToken bool `json:"attach_token,omitempty"`

	// ReturnsSession updates the worker-side session from the grant
	// response.
	ReturnsSession bool `json:"returns_session,omitempty"`

	// SignOutURLFromSession tells the host to reuse its cached sign-out
	// URL instead of refreshing it over the channel on the next sign-out.
	SignOutURLFromSession bool `json:"sign_out_url_from_session,omitempty"`
}

// CustomGrantResponse is the raw grant response, plus the session fields the
// worker extracted when the grant returns a session.
type CustomGrantResponse struct {
	Raw     json.RawMessage `json:"raw,omitempty"`
	Session *TokenResponse  `json:"session,omitempty"`
}

// HTTPRequest describes a proxied API call executed in the worker context so
// the access token never crosses into the host.
type HTTPRequest struct {
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	AttachToken bool              `json:"attach_token"`
}

// HTTPResponse is the result of a proxied API call.  The body rides the
// Response blob and is attached by the channel.
type HTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"-"`
}

// AttachBlob implements BlobReceiver.
func (r *HTTPResponse) AttachBlob(blob []byte) {
	r.Body = blob
}

// BatchHTTPResponse is the wire form of one result in a TypeHTTPRequestAll
// reply.  A Response carries at most one blob, so each body in a batch
// travels base64-encoded inside the payload instead.
type BatchHTTPResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
}

// NewBatchHTTPResponse converts a proxied result into its wire form.
func NewBatchHTTPResponse(r *HTTPResponse) *BatchHTTPResponse {
	return &BatchHTTPResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

// Response converts the wire form back into an HTTPResponse.
func (r *BatchHTTPResponse) Response() *HTTPResponse {
	return &HTTPResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

// SetSessionStateRequest updates the worker's session_state value after a
// check-session signal.
type SetSessionStateRequest struct {
	SessionState string `json:"session_state"`
}

// SignOutResponse returns the provider sign-out URL the host must navigate
// to.  The worker clears its session before replying.
type SignOutResponse struct {
	SignOutURL string `json:"sign_out_url"`
}

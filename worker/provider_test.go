package worker

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// testProvider is a disposable in-process OIDC provider supporting
// discovery, token issuance, revocation and custom grants.
type testProvider struct {
	t      *testing.T
	server *httptest.Server
	issuer string

	signingKey jose.JSONWebKey
	jwks       jose.JSONWebKeySet

	mu               sync.Mutex
	clientID         string
	expectedCode     string
	issueRefresh     bool
	expiresIn        int
	lastCodeVerifier string
	lastGrantForm    url.Values
	revokedTokens    []string
}

func startTestProvider(t *testing.T) *testProvider {
	t.Helper()
	require := require.New(t)

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)

	p := &testProvider{
		t:            t,
		clientID:     "test-rp",
		expectedCode: "test-code",
		issueRefresh: true,
		expiresIn:    3600,
		signingKey: jose.JSONWebKey{
			Key:       priv,
			KeyID:     "test-key",
			Algorithm: "RS256",
			Use:       "sig",
		},
	}
	p.jwks = jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       priv.Public(),
			KeyID:     "test-key",
			Algorithm: "RS256",
			Use:       "sig",
		}},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/jwks", p.handleJWKS)
	mux.HandleFunc("/token", p.handleToken)
	mux.HandleFunc("/revoke", p.handleRevoke)

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	p.issuer = p.server.URL
	return p
}

func (p *testProvider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]interface{}{
		"issuer":                                p.issuer,
		"authorization_endpoint":                p.issuer + "/authorize",
		"token_endpoint":                        p.issuer + "/token",
		"userinfo_endpoint":                     p.issuer + "/userinfo",
		"jwks_uri":                              p.issuer + "/jwks",
		"revocation_endpoint":                   p.issuer + "/revoke",
		"end_session_endpoint":                  p.issuer + "/logout",
		"check_session_iframe":                  p.issuer + "/checksession",
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (p *testProvider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p.jwks)
}

func (p *testProvider) signIDToken() string {
	require := require.New(p.t)
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: p.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(err)

	now := time.Now()
	claims := jwt.Claims{
		Issuer:   p.issuer,
		Subject:  "alice",
		Audience: jwt.Audience{p.clientID},
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt: jwt.NewNumericDate(now),
	}
	private := map[string]interface{}{
		"preferred_username": "alice",
		"email":              "alice@example.com",
		"name":               "Alice Doe",
	}
	raw, err := jwt.Signed(sig).Claims(claims).Claims(private).CompactSerialize()
	require.NoError(err)
	return raw
}

func (p *testProvider) handleToken(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fail := func(code string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
	}

	reply := map[string]interface{}{
		"access_token": "at-" + req.FormValue("grant_type"),
		"token_type":   "Bearer",
		"expires_in":   p.expiresIn,
		"id_token":     p.signIDToken(),
		"scope":        "openid profile email",
	}

	switch req.FormValue("grant_type") {
	case "authorization_code":
		if req.FormValue("code") != p.expectedCode {
			fail("invalid_grant")
			return
		}
		p.lastCodeVerifier = req.FormValue("code_verifier")
		if p.issueRefresh {
			reply["refresh_token"] = "rt-initial"
		}
	case "refresh_token":
		if req.FormValue("refresh_token") == "" {
			fail("invalid_grant")
			return
		}
		reply["access_token"] = "at-refreshed"
		reply["refresh_token"] = "rt-rotated"
	default:
		// custom grants: record the form and answer with a bare session
		p.lastGrantForm = req.Form
		reply = map[string]interface{}{
			"access_token": "at-custom",
			"token_type":   "Bearer",
			"expires_in":   p.expiresIn,
			"scope":        "custom",
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func (p *testProvider) handleRevoke(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, _, ok := req.BasicAuth(); !ok {
		http.Error(w, "missing client auth", http.StatusUnauthorized)
		return
	}
	p.mu.Lock()
	p.revokedTokens = append(p.revokedTokens, req.FormValue("token"))
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *testProvider) codeVerifier() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCodeVerifier
}

func (p *testProvider) grantForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGrantForm
}

func (p *testProvider) revoked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revokedTokens...)
}

package worker

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ChallengeMethod represents PKCE challenge methods as defined by RFC 7636.
type ChallengeMethod string

// S256 is the only supported PKCE challenge method: SHA-256 then
// base64url-encoded without padding.
const S256 ChallengeMethod = "S256"

// verifierLen is the length of a generated code verifier: 32 random bytes
// base64url-encoded without padding.
const verifierLen = 43

// CodeVerifier represents an OAuth PKCE code verifier/challenge pair for one
// authorization request.
type CodeVerifier struct {
	verifier  string
	challenge string
	method    ChallengeMethod
}

// NewCodeVerifier creates a verifier with an S256 challenge.
func NewCodeVerifier() (*CodeVerifier, error) {
	const op = "worker.NewCodeVerifier"
	data := make([]byte, 32)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("%s: unable to create verifier data: %w", op, err)
	}
	v := &CodeVerifier{
		verifier: base64.RawURLEncoding.EncodeToString(data),
		method:   S256,
	}
	challenge, err := CreateCodeChallenge(v.method, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.challenge = challenge
	return v, nil
}

// VerifierFrom wraps an existing verifier string, as received back from the
// host during a code exchange.
func VerifierFrom(verifier string) (*CodeVerifier, error) {
	const op = "worker.VerifierFrom"
	if verifier == "" {
		return nil, fmt.Errorf("%s: verifier is empty: %w", op, ErrInvalidParameter)
	}
	v := &CodeVerifier{
		verifier: verifier,
		method:   S256,
	}
	challenge, err := CreateCodeChallenge(v.method, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.challenge = challenge
	return v, nil
}

func (v *CodeVerifier) Verifier() string        { return v.verifier }
func (v *CodeVerifier) Challenge() string       { return v.challenge }
func (v *CodeVerifier) Method() ChallengeMethod { return v.method }

// CreateCodeChallenge derives the challenge for a verifier using the given
// method.
func CreateCodeChallenge(m ChallengeMethod, v *CodeVerifier) (string, error) {
	const op = "worker.CreateCodeChallenge"
	if v == nil {
		return "", fmt.Errorf("%s: verifier is nil: %w", op, ErrNilParameter)
	}
	if m != S256 {
		return "", fmt.Errorf("%s: %q: %w", op, m, ErrUnsupportedChallengeMethod)
	}
	h := sha256.New()
	_, _ = h.Write([]byte(v.verifier))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

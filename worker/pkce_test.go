package worker

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodeVerifier(t *testing.T) {
	t.Parallel()
	t.Run("basics", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := NewCodeVerifier()
		require.NoError(err)
		assert.Equal(verifierLen, len(got.Verifier()))
		assert.Equal(S256, got.Method())

		challenge, err := CreateCodeChallenge(S256, got)
		require.NoError(err)
		assert.Equal(challenge, got.Challenge())
	})
	t.Run("verifiers-are-unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		v1, err := NewCodeVerifier()
		require.NoError(err)
		v2, err := NewCodeVerifier()
		require.NoError(err)
		assert.NotEqual(v1.Verifier(), v2.Verifier())
	})
}

func TestVerifierFrom(t *testing.T) {
	t.Parallel()
	t.Run("round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		orig, err := NewCodeVerifier()
		require.NoError(err)
		got, err := VerifierFrom(orig.Verifier())
		require.NoError(err)
		assert.Equal(orig.Challenge(), got.Challenge())
	})
	t.Run("empty", func(t *testing.T) {
		assert := assert.New(t)
		got, err := VerifierFrom("")
		assert.Nil(got)
		assert.True(errors.Is(err, ErrInvalidParameter))
	})
}

func TestCreateCodeChallenge(t *testing.T) {
	t.Parallel()
	calcHash := func(data []byte) string {
		h := sha256.New()
		_, _ = h.Write(data)
		sum := h.Sum(nil)
		return base64.RawURLEncoding.EncodeToString(sum)
	}
	t.Run("basics", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		v, err := NewCodeVerifier()
		require.NoError(err)
		challenge, err := CreateCodeChallenge(S256, v)
		require.NoError(err)
		assert.Equal(calcHash([]byte(v.Verifier())), challenge)
	})
	t.Run("invalid-method", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		v, err := NewCodeVerifier()
		require.NoError(err)
		challenge, err := CreateCodeChallenge(ChallengeMethod("S512"), v)
		require.Error(err)
		assert.Empty(challenge)
		assert.True(errors.Is(err, ErrUnsupportedChallengeMethod))
	})
}

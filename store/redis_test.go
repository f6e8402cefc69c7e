package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestNewRedis(t *testing.T) {
	t.Parallel()
	t.Run("nil-client", func(t *testing.T) {
		assert := assert.New(t)
		got, err := NewRedis(nil, "session")
		assert.Nil(got)
		assert.True(errors.Is(err, ErrNilParameter))
	})
	t.Run("empty-namespace", func(t *testing.T) {
		assert := assert.New(t)
		got, err := NewRedis(testRedis(t), "")
		assert.Nil(got)
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestRedis_RoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, err := NewRedis(testRedis(t), "client-1")
	require.NoError(err)

	_, err = s.Get(ctx, KeyAccessToken)
	assert.True(errors.Is(err, ErrKeyNotFound))

	require.NoError(s.Set(ctx, KeyAccessToken, "at-123"))
	got, err := s.Get(ctx, KeyAccessToken)
	require.NoError(err)
	assert.Equal("at-123", got)

	require.NoError(s.Remove(ctx, KeyAccessToken))
	_, err = s.Get(ctx, KeyAccessToken)
	assert.True(errors.Is(err, ErrKeyNotFound))

	// absent key removal is idempotent
	require.NoError(s.Remove(ctx, KeyAccessToken))
}

func TestRedis_NamespaceIsolation(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	client := testRedis(t)
	s1, err := NewRedis(client, "client-1")
	require.NoError(err)
	s2, err := NewRedis(client, "client-2")
	require.NoError(err)

	require.NoError(s1.Set(ctx, KeySignOutURL, "https://idp.example.com/logout"))
	_, err = s2.Get(ctx, KeySignOutURL)
	assert.True(errors.Is(err, ErrKeyNotFound))
}

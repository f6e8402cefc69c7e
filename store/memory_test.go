package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name      string
		setup     map[string]string
		key       string
		want      string
		wantIsErr error
	}{
		{
			name:  "existing-key",
			setup: map[string]string{KeyAccessToken: "at-123"},
			key:   KeyAccessToken,
			want:  "at-123",
		},
		{
			name:      "missing-key",
			setup:     map[string]string{KeyAccessToken: "at-123"},
			key:       KeyRefreshToken,
			wantIsErr: ErrKeyNotFound,
		},
		{
			name:      "empty-store",
			key:       KeyIDToken,
			wantIsErr: ErrKeyNotFound,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			s := NewMemory()
			for k, v := range tt.setup {
				require.NoError(s.Set(ctx, k, v))
			}
			got, err := s.Get(ctx, tt.key)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted %q but got %q", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want, got)
		})
	}
}

func TestMemory_Remove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("removes-value", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewMemory()
		require.NoError(s.Set(ctx, KeySessionState, "ss-1"))
		require.NoError(s.Remove(ctx, KeySessionState))
		_, err := s.Get(ctx, KeySessionState)
		assert.True(errors.Is(err, ErrKeyNotFound))
	})
	t.Run("absent-key-is-not-an-error", func(t *testing.T) {
		require := require.New(t)
		s := NewMemory()
		require.NoError(s.Remove(ctx, "never-set"))
	})
}

func TestMemory_Concurrent(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	ctx := context.Background()
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, KeyAccessToken, "at")
			_, _ = s.Get(ctx, KeyAccessToken)
			_ = s.Remove(ctx, KeyRefreshToken)
		}()
	}
	wg.Wait()
	require.NoError(s.Set(ctx, KeyAccessToken, "final"))
	got, err := s.Get(ctx, KeyAccessToken)
	require.NoError(err)
	require.Equal("final", got)
}

package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcell/authcell/rpc"
	"github.com/authcell/authcell/store"
)

const silentAuthURL = "https://idp.example.com/authorize?prompt=none&state=" + SilentSignInState

func scriptSilentAuthURL(tr *scriptTransport, pkce string) {
	tr.handle(rpc.TypeGetAuthURL, func(m rpc.Message) rpc.Response {
		return okResp(rpc.AuthURLResponse{AuthorizationURL: silentAuthURL, PKCE: pkce})
	})
}

func TestClient_TrySignInSilently(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("signed-in-exchanges-code", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(2*time.Second))
		scriptSilentAuthURL(rig.transport, "silent-verifier")
		var exchanged rpc.AuthorizationInfo
		rig.transport.handle(rpc.TypeRequestAccessToken, func(m rpc.Message) rpc.Response {
			if err := json.Unmarshal(m.Data, &exchanged); err != nil {
				return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
			}
			return okResp(rpc.TokenResponse{
				UserInfo:  rpc.BasicUserInfo{Sub: "alice", Username: "alice"},
				ExpiresIn: 3600,
			})
		})
		rig.frame.onNavigate = func(string) {
			rig.bus.Publish(Signal{
				Type:         SignalSignedIn,
				Code:         "silent-code",
				SessionState: "ss-1",
				State:        SilentSignInState,
			})
		}

		info, ok, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		require.True(ok)
		require.NotNil(info)
		assert.Equal("alice", info.Sub)
		assert.Equal("silent-code", exchanged.Code)
		assert.Equal(SilentSignInState, exchanged.State)

		// the parked verifier rode along and was consumed
		assert.Equal("silent-verifier", exchanged.PKCE)
		_, err = rig.sessions.Get(ctx, store.PKCEKeyPrefix+SilentSignInState)
		assert.ErrorIs(err, store.ErrKeyNotFound)

		assert.Equal([]string{silentAuthURL}, rig.frame.navigated())
	})

	t.Run("signed-out-resolves-false", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(2*time.Second))
		scriptSilentAuthURL(rig.transport, "")
		rig.frame.onNavigate = func(string) {
			rig.bus.Publish(Signal{Type: SignalSignedOut})
		}

		info, ok, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		assert.False(ok)
		assert.Nil(info)
		assert.Zero(rig.transport.count(rpc.TypeRequestAccessToken))
	})

	t.Run("timeout-resolves-false", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(40*time.Millisecond))
		scriptSilentAuthURL(rig.transport, "")

		info, ok, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		assert.False(ok)
		assert.Nil(info)
	})

	t.Run("unrelated-signals-are-ignored", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(2*time.Second))
		scriptSilentAuthURL(rig.transport, "")
		rig.frame.onNavigate = func(string) {
			rig.bus.Publish(Signal{Type: SignalSessionChanged})
			time.Sleep(20 * time.Millisecond)
			rig.bus.Publish(Signal{Type: SignalSignedOut})
		}

		_, ok, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		assert.False(ok)
	})

	t.Run("failed-exchange-is-an-error", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(2*time.Second))
		scriptSilentAuthURL(rig.transport, "")
		rig.transport.handle(rpc.TypeRequestAccessToken, func(rpc.Message) rpc.Response {
			return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: "exchange rejected"})
		})
		rig.frame.onNavigate = func(string) {
			rig.bus.Publish(Signal{Type: SignalSignedIn, Code: "bad", State: SilentSignInState})
		}

		info, ok, err := rig.client.TrySignInSilently(ctx)
		require.Error(err)
		assert.ErrorIs(err, ErrSilentReauthFailed)
		assert.False(ok)
		assert.Nil(info)
	})

	t.Run("listener-deregistered-exactly-once", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(30*time.Millisecond))
		scriptSilentAuthURL(rig.transport, "")

		_, _, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		assert.Equal(1, rig.bus.cancelCount())

		// reset after settlement must not double-deregister
		rig.client.silent.reset()
		assert.Equal(1, rig.bus.cancelCount())
	})

	t.Run("derives-prompt-none-query-request", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		rig := newTestRig(t, WithSilentSignInTimeout(30*time.Millisecond))
		var authReq rpc.AuthURLRequest
		rig.transport.handle(rpc.TypeGetAuthURL, func(m rpc.Message) rpc.Response {
			if err := json.Unmarshal(m.Data, &authReq); err != nil {
				return rpc.NewErrorResponse(&rpc.ErrorInfo{Message: err.Error()})
			}
			return okResp(rpc.AuthURLResponse{AuthorizationURL: silentAuthURL})
		})

		_, _, err := rig.client.TrySignInSilently(ctx)
		require.NoError(err)
		assert.Equal("none", authReq.Params["prompt"])
		assert.Equal(SilentSignInState, authReq.Params["state"])
		assert.Equal(rpc.ResponseModeQuery, authReq.Params["response_mode"])
	})
}

package fakeapi_test

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/internal/fakeapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *fakeapi.Server) *api.Client {
	t.Helper()
	client, err := api.New(srv.URL(), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return client
}

func TestTokenLifecycle(t *testing.T) {
	srv := fakeapi.New(t)
	client := newClient(t, srv)

	pair, err := client.ObtainToken(t.Context(), api.Credentials{Email: fakeapi.DefaultEmail, Password: fakeapi.DefaultPassword})
	require.NoError(t, err)
	require.Equal(t, "T1", pair.Access)
	require.Equal(t, "R1", pair.Refresh)

	user, err := client.CurrentUser(t.Context(), pair.Access)
	require.NoError(t, err)
	require.Equal(t, fakeapi.DefaultUsername, user.Username)

	access, err := client.RefreshAccessToken(t.Context(), pair.Refresh)
	require.NoError(t, err)
	require.Equal(t, "T2", access)

	require.NoError(t, client.Logout(t.Context(), access))
	_, err = client.CurrentUser(t.Context(), access)
	require.True(t, api.IsUnauthorized(err))

	require.Equal(t, 1, srv.Calls(fakeapi.RouteToken))
	require.Equal(t, 1, srv.Calls(fakeapi.RouteRefresh))
	require.Equal(t, 2, srv.Calls(fakeapi.RouteMe))
}

func TestWrongPasswordRejected(t *testing.T) {
	srv := fakeapi.New(t)

	_, err := newClient(t, srv).ObtainToken(t.Context(), api.Credentials{Email: fakeapi.DefaultEmail, Password: "nope"})

	require.Equal(t, 401, api.StatusCode(err))
	require.Equal(t, "No active account found with the given credentials", api.UserMessage(err))
}

func TestRevokedRefreshRejected(t *testing.T) {
	srv := fakeapi.New(t)
	client := newClient(t, srv)
	pair, err := client.ObtainToken(t.Context(), api.Credentials{Email: fakeapi.DefaultEmail, Password: fakeapi.DefaultPassword})
	require.NoError(t, err)

	srv.RevokeRefresh(pair.Refresh)

	_, err = client.RefreshAccessToken(t.Context(), pair.Refresh)
	require.True(t, api.IsUnauthorized(err))
}

func TestSignedAccessTokensExpire(t *testing.T) {
	start := time.Now()
	var elapsed atomic.Int64
	clock := func() time.Time { return start.Add(time.Duration(elapsed.Load())) }
	srv := fakeapi.New(t, fakeapi.WithAccessTTL(time.Minute), fakeapi.WithNowTime(clock))
	client := newClient(t, srv)

	pair, err := client.ObtainToken(t.Context(), api.Credentials{Email: fakeapi.DefaultEmail, Password: fakeapi.DefaultPassword})
	require.NoError(t, err)
	require.Contains(t, pair.Access, ".")

	_, err = client.CurrentUser(t.Context(), pair.Access)
	require.NoError(t, err)

	elapsed.Store(int64(2 * time.Minute))
	_, err = client.CurrentUser(t.Context(), pair.Access)
	require.True(t, api.IsUnauthorized(err))
}

func TestMissingBearerRejected(t *testing.T) {
	srv := fakeapi.New(t)

	_, err := newClient(t, srv).CurrentUser(t.Context(), "")

	require.True(t, api.IsUnauthorized(err))
}

func TestHoldLoginsBlocksUntilReleased(t *testing.T) {
	srv := fakeapi.New(t)
	client := newClient(t, srv)
	release := srv.HoldLogins()

	done := make(chan error, 1)
	go func() {
		_, err := client.ObtainToken(t.Context(), api.Credentials{Email: fakeapi.DefaultEmail, Password: fakeapi.DefaultPassword})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("login finished while held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	release()
	require.NoError(t, <-done)
}

func TestRoutesLoggedToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	fakeapi.New(t, fakeapi.WithLogger(zerolog.New(&buf)))

	require.Contains(t, buf.String(), "Registered route")
	require.Contains(t, buf.String(), fakeapi.RouteToken)
}

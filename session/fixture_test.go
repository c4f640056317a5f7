package session_test

import (
	"sync"
	"testing"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/internal/fakeapi"
	"github.com/jrsteele09/go-shop-client/session"
	"github.com/jrsteele09/go-shop-client/tokenstore"
	"github.com/jrsteele09/go-shop-client/tokenstore/storefake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = fakeapi.DefaultEmail
	testPassword = fakeapi.DefaultPassword
)

type testFixture struct {
	backend *fakeapi.Server
	store   *storefake.FakeStore
	client  *api.Client
	manager *session.Manager

	routeLock sync.Mutex
	routes    []session.Route
}

func setupTestFixture(t *testing.T, options ...session.ManagerOption) *testFixture {
	t.Helper()
	return setupTestFixtureWithStore(t, storefake.NewFakeStore(), options...)
}

func setupTestFixtureWithStore(t *testing.T, store *storefake.FakeStore, options ...session.ManagerOption) *testFixture {
	t.Helper()

	f := &testFixture{
		backend: fakeapi.New(t),
		store:   store,
	}

	var err error
	f.client, err = api.New(f.backend.URL(), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	opts := append([]session.ManagerOption{
		session.WithLogger(zerolog.Nop()),
		session.WithNavigator(f.recordRoute),
	}, options...)
	f.manager, err = session.NewManager(f.client, f.store, opts...)
	require.NoError(t, err)
	t.Cleanup(f.manager.Close)
	return f
}

func (f *testFixture) recordRoute(r session.Route) {
	f.routeLock.Lock()
	defer f.routeLock.Unlock()
	f.routes = append(f.routes, r)
}

func (f *testFixture) lastRoute() session.Route {
	f.routeLock.Lock()
	defer f.routeLock.Unlock()
	if len(f.routes) == 0 {
		return ""
	}
	return f.routes[len(f.routes)-1]
}

// login signs in with the valid credentials and checks the T1/R1 outcome.
func (f *testFixture) login(t *testing.T) session.Session {
	t.Helper()
	require.True(t, f.manager.Login(t.Context(), testEmail, testPassword))
	s := f.manager.Session()
	require.Equal(t, session.StateAuthenticated, s.State)
	return s
}

func storedTokens(access, refresh string) tokenstore.Tokens {
	return tokenstore.Tokens{Access: access, Refresh: refresh}
}

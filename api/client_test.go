package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-shop-client/api"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := api.New(srv.URL + "/api")
	require.NoError(t, err)
	return c
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := api.New("/api/")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be absolute")
}

func TestObtainToken_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/token/", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var creds api.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "a@x.com", creds.Email)
		require.Equal(t, "secret", creds.Password)

		_ = json.NewEncoder(w).Encode(api.TokenPair{Access: "T1", Refresh: "R1"})
	})

	pair, err := c.ObtainToken(context.Background(), api.Credentials{Email: "a@x.com", Password: "secret"})

	require.NoError(t, err)
	require.Equal(t, "T1", pair.Access)
	require.Equal(t, "R1", pair.Refresh)
}

func TestObtainToken_DetailFromBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	})

	_, err := c.ObtainToken(context.Background(), api.Credentials{Email: "a@x.com", Password: "bad"})

	require.Error(t, err)
	require.True(t, api.IsUnauthorized(err))
	require.False(t, api.IsNetworkError(err))
	require.Equal(t, "No active account found with the given credentials", api.UserMessage(err))
}

func TestObtainToken_ValidationSkipsNetwork(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.ObtainToken(context.Background(), api.Credentials{Email: "not-an-email", Password: "x"})

	require.Error(t, err)
	require.False(t, called)
	require.Equal(t, http.StatusBadRequest, api.StatusCode(err))
	require.Contains(t, api.UserMessage(err), "valid email")
}

func TestObtainToken_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := api.New(srv.URL + "/api/")
	require.NoError(t, err)
	srv.Close()

	_, err = c.ObtainToken(context.Background(), api.Credentials{Email: "a@x.com", Password: "secret"})

	require.Error(t, err)
	require.True(t, api.IsNetworkError(err))
	require.Equal(t, api.GenericErrorMessage, api.UserMessage(err))
}

func TestRefreshAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/refresh/", r.URL.Path)
		var req api.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "R1", req.Refresh)
		_, _ = w.Write([]byte(`{"access":"T2"}`))
	})

	access, err := c.RefreshAccessToken(context.Background(), "R1")

	require.NoError(t, err)
	require.Equal(t, "T2", access)
}

func TestLogout_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logout/", r.URL.Path)
		require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusResetContent)
	})

	require.NoError(t, c.Logout(context.Background(), "T1"))
}

func TestCurrentUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/users/me/", r.URL.Path)
		require.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":4,"email":"a@x.com","username":"ann"}`))
	})

	user, err := c.CurrentUser(context.Background(), "T1")

	require.NoError(t, err)
	require.Equal(t, 4, user.ID)
	require.Equal(t, "ann", user.DisplayName())
}

func TestSignup_FieldErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/signup/", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"email":["user with this email already exists."]}`))
	})

	_, err := c.Signup(context.Background(), api.SignupRequest{Username: "ann", Email: "a@x.com", Password: "password123"})

	require.Error(t, err)
	require.Equal(t, "email: user with this email already exists.", api.UserMessage(err))
}

func TestSignup_Validation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be called")
	})

	_, err := c.Signup(context.Background(), api.SignupRequest{Username: "ann", Email: "a@x.com", Password: "short"})

	require.Error(t, err)
	require.Contains(t, api.UserMessage(err), "at least 8")
}

func TestTokenResponsesMissingTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access":""}`))
	})

	_, err := c.ObtainToken(context.Background(), api.Credentials{Email: "a@x.com", Password: "secret"})
	require.ErrorIs(t, err, shoperrors.ErrMissingToken)

	_, err = c.RefreshAccessToken(context.Background(), "R1")
	require.ErrorIs(t, err, shoperrors.ErrMissingToken)
	require.False(t, api.IsNetworkError(err))
}

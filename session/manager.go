package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-shop-client/api"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/jrsteele09/go-shop-client/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultRefreshSkew = 30 * time.Second

// Manager is the single owner of the session. All mutations happen under mu and
// are published to subscribers as whole snapshots once mu is released.
//
// Durable storage is written while mu is held, so a token is always persisted
// before any call that depends on it can be issued, and a logout can never be
// overtaken by a late write.
type Manager struct {
	client      *api.Client
	store       tokenstore.Store
	logger      zerolog.Logger
	navigate    func(Route)
	metrics     *Metrics
	nowFunc     func() time.Time
	refreshSkew time.Duration

	mu         sync.Mutex
	sess       Session
	version    uint64
	refreshing chan struct{} // non-nil while a refresh call is outstanding
	refresher  *Refresher

	subMu       sync.Mutex
	subscribers map[uint64]func(Session)
	nextSubID   uint64
	delivered   uint64
}

var _ oauth2.TokenSource = (*Manager)(nil)

// NewManager creates a Manager in the Anonymous state. Call Restore to pick up
// tokens persisted by a previous run.
func NewManager(client *api.Client, store tokenstore.Store, options ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, errors.New("[NewManager] api client is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		client:      client,
		store:       store,
		logger:      log.Logger.With().Str("component", "session").Logger(),
		navigate:    func(Route) {},
		nowFunc:     time.Now,
		refreshSkew: defaultRefreshSkew,
		subscribers: make(map[uint64]func(Session)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.clone()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.State
}

// Subscribe registers fn to receive every published snapshot, newest last.
// fn runs on the goroutine that changed the session and must not call
// Login, Refresh, Logout, Restore or unsubscribe synchronously.
func (m *Manager) Subscribe(fn func(Session)) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

// Restore hydrates the session from durable storage. A stored access token puts
// the session straight into Authenticated, pending identity confirmation. If
// the server rejects the stored token the session is refreshed, and torn down
// if that fails too.
func (m *Manager) Restore(ctx context.Context) error {
	tokens, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Err(err).Msg("Failed to load stored tokens")
		return err
	}
	if tokens.Access == "" {
		return nil
	}

	m.mu.Lock()
	if m.sess.State != StateAnonymous {
		m.mu.Unlock()
		return nil
	}
	m.setAccessLocked(tokens.Access)
	m.sess.RefreshToken = tokens.Refresh
	m.sess.State = StateAuthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	m.logger.Debug().Msg("Session restored from storage")

	current := snap.session
	if m.expiresSoon(current) && current.RefreshToken != "" {
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		current = m.Session()
	}

	if err := m.FetchUser(ctx, current.AccessToken); err != nil && api.IsUnauthorized(err) {
		return m.refreshAfterUnauthorized(ctx, current.AccessToken)
	}
	return nil
}

// Login exchanges credentials for a token pair. It returns true on success; on
// failure the reason is recorded in the session's LastError.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	m.mu.Lock()
	if m.sess.State != StateAnonymous {
		state := m.sess.State
		m.mu.Unlock()
		m.logger.Warn().Stringer("state", state).Msg("Login ignored: session is not anonymous")
		return false
	}
	gen := m.sess.Generation
	m.sess.State = StateAuthenticating
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	pair, err := m.client.ObtainToken(ctx, api.Credentials{Email: email, Password: password})
	if err != nil {
		kind := ErrorCredential
		if api.IsNetworkError(err) {
			kind = ErrorNetwork
		}
		m.logger.Info().Err(err).Stringer("kind", kind).Msg("Login failed")
		m.failLogin(gen, api.UserMessage(err), kind)
		return false
	}

	m.mu.Lock()
	if gen != m.sess.Generation || m.sess.State != StateAuthenticating {
		m.mu.Unlock()
		m.logger.Debug().Msg("Discarding stale login result")
		return false
	}
	if err := m.store.Save(ctx, tokenstore.Tokens{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		m.mu.Unlock()
		m.logger.Err(err).Msg("Failed to persist tokens after login")
		m.failLogin(gen, MsgStorageFailure, ErrorStorage)
		return false
	}
	m.setAccessLocked(pair.Access)
	m.sess.RefreshToken = pair.Refresh
	m.sess.User = nil
	m.sess.State = StateAuthenticated
	m.sess.LastError = ""
	m.sess.ErrorKind = ErrorNone
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	m.metrics.login("success")

	_ = m.FetchUser(ctx, pair.Access)
	m.navigate(RouteHome)
	return true
}

func (m *Manager) failLogin(gen uint64, message string, kind ErrorKind) {
	m.mu.Lock()
	if gen != m.sess.Generation || m.sess.State != StateAuthenticating {
		m.mu.Unlock()
		return
	}
	m.sess.State = StateAnonymous
	m.sess.LastError = message
	m.sess.ErrorKind = kind
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	m.metrics.login(kind.String())
}

// Refresh trades the refresh token for a new access token. Only one refresh is
// ever in flight: a call made while another is outstanding returns nil at once.
//
// A rejection by the server tears the session down and returns
// ErrSessionExpired. A failure without a response leaves the session
// Authenticated so the next tick can try again.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, "")
}

// refresh starts a refresh unless one is in flight. A non-empty staleToken
// makes it a no-op once the access token has already moved on.
func (m *Manager) refresh(ctx context.Context, staleToken string) error {
	m.mu.Lock()
	if m.refreshing != nil {
		m.mu.Unlock()
		m.logger.Debug().Msg("Refresh already in flight")
		return nil
	}
	if staleToken != "" && m.sess.AccessToken != staleToken && m.sess.AccessToken != "" {
		m.mu.Unlock()
		return nil
	}
	if m.sess.State != StateAuthenticated || m.sess.RefreshToken == "" {
		m.mu.Unlock()
		return shoperrors.ErrNotAuthenticated
	}
	gen := m.sess.Generation
	refreshToken := m.sess.RefreshToken
	done := make(chan struct{})
	m.refreshing = done
	m.sess.State = StateRefreshing
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	defer func() {
		m.mu.Lock()
		m.refreshing = nil
		m.mu.Unlock()
		close(done)
	}()

	access, err := m.client.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if api.IsNetworkError(err) {
			m.logger.Warn().Err(err).Msg("Refresh got no response, will retry on next tick")
			m.restoreAuthenticated(gen)
			m.metrics.refresh("transient")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return nil
		}

		m.logger.Info().Err(err).Msg("Refresh rejected, session expired")
		m.metrics.refresh("expired")
		return m.expire(ctx, gen, StateRefreshing)
	}

	m.mu.Lock()
	if gen != m.sess.Generation || m.sess.State != StateRefreshing {
		m.mu.Unlock()
		m.logger.Debug().Msg("Discarding stale refresh result")
		return nil
	}
	if err := m.store.Save(ctx, tokenstore.Tokens{Access: access, Refresh: m.sess.RefreshToken}); err != nil {
		// The server has already issued the new token; keep using it in memory.
		m.logger.Err(err).Msg("Failed to persist refreshed access token")
	}
	m.setAccessLocked(access)
	m.sess.State = StateAuthenticated
	m.sess.LastError = ""
	m.sess.ErrorKind = ErrorNone
	snap = m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	m.metrics.refresh("success")
	return nil
}

func (m *Manager) restoreAuthenticated(gen uint64) {
	m.mu.Lock()
	if gen != m.sess.Generation || m.sess.State != StateRefreshing {
		m.mu.Unlock()
		return
	}
	m.sess.State = StateAuthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
}

// expire moves the session from state from to Expired and immediately cleans it up.
func (m *Manager) expire(ctx context.Context, gen uint64, from State) error {
	m.mu.Lock()
	if gen != m.sess.Generation || m.sess.State != from {
		m.mu.Unlock()
		return nil
	}
	m.sess.State = StateExpired
	token := m.sess.AccessToken
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)

	m.teardown(ctx, token, MsgSessionExpired, ErrorExpiry, RouteLogin)
	return shoperrors.ErrSessionExpired
}

// Logout notifies the server (best effort) and then clears the session and
// durable storage regardless of the outcome.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.sess.AccessToken
	m.mu.Unlock()

	m.teardown(ctx, token, "", ErrorNone, RouteHome)
}

func (m *Manager) teardown(ctx context.Context, token, message string, kind ErrorKind, route Route) {
	notified := "skipped"
	if token != "" {
		notified = "yes"
		if err := m.client.Logout(ctx, token); err != nil {
			notified = "failed"
			m.logger.Err(err).Msg("Logout notification failed")
		}
	}

	// Local cleanup must not be skipped because the caller's context is done.
	cleanupCtx := context.WithoutCancel(ctx)

	m.mu.Lock()
	m.sess = Session{
		State:      StateAnonymous,
		LastError:  message,
		ErrorKind:  kind,
		Generation: m.sess.Generation + 1,
	}
	if err := m.store.Clear(cleanupCtx); err != nil {
		m.logger.Err(err).Msg("Failed to clear stored tokens")
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	m.metrics.logout(notified)

	m.navigate(route)
}

// FetchUser retrieves the identity behind token and records it if token is still
// the current access token. Failures are logged and returned; they never change
// the authentication state.
func (m *Manager) FetchUser(ctx context.Context, token string) error {
	user, err := m.client.CurrentUser(ctx, token)
	if err != nil {
		m.logger.Err(err).Str("detail", api.UserMessage(err)).Msg("Fetch user error")
		return err
	}

	m.mu.Lock()
	if m.sess.AccessToken != token {
		m.mu.Unlock()
		return nil
	}
	m.sess.User = user
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.publish(snap)
	return nil
}

// Token implements oauth2.TokenSource. A token close to its expiry is refreshed first.
func (m *Manager) Token() (*oauth2.Token, error) {
	snap := m.Session()
	if snap.AccessToken == "" {
		return nil, shoperrors.ErrNotAuthenticated
	}

	if m.expiresSoon(snap) && snap.RefreshToken != "" {
		ctx := context.Background()
		if err := m.refresh(ctx, snap.AccessToken); err != nil && !errors.Is(err, shoperrors.ErrNotAuthenticated) {
			return nil, err
		}
		if err := m.waitRefresh(ctx); err != nil {
			return nil, err
		}
		snap = m.Session()
		if snap.AccessToken == "" {
			return nil, shoperrors.ErrSessionExpired
		}
	}

	return &oauth2.Token{
		AccessToken:  snap.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: snap.RefreshToken,
		Expiry:       snap.AccessExpiresAt,
	}, nil
}

// refreshAfterUnauthorized applies the 401 policy: the stale token is refreshed
// once (or the outstanding refresh is awaited). It returns ErrSessionExpired when
// the session did not survive.
func (m *Manager) refreshAfterUnauthorized(ctx context.Context, staleToken string) error {
	err := m.refresh(ctx, staleToken)
	if errors.Is(err, shoperrors.ErrNotAuthenticated) {
		if gen, ok := m.unrefreshable(staleToken); ok {
			m.logger.Info().Msg("Access token rejected and no refresh token held, session expired")
			return m.expire(ctx, gen, StateAuthenticated)
		}
	} else if err != nil {
		return err
	}
	if err := m.waitRefresh(ctx); err != nil {
		return err
	}

	if m.Session().AccessToken == "" {
		return shoperrors.ErrSessionExpired
	}
	return nil
}

// unrefreshable reports whether the session still holds the rejected token and
// has no refresh token to replace it with.
func (m *Manager) unrefreshable(staleToken string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := staleToken != "" &&
		m.sess.State == StateAuthenticated &&
		m.sess.AccessToken == staleToken &&
		m.sess.RefreshToken == ""
	return m.sess.Generation, ok
}

// waitRefresh blocks until no refresh is outstanding.
func (m *Manager) waitRefresh(ctx context.Context) error {
	m.mu.Lock()
	ch := m.refreshing
	m.mu.Unlock()
	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) expiresSoon(s Session) bool {
	if s.AccessExpiresAt.IsZero() {
		return false
	}
	return !m.nowFunc().Add(m.refreshSkew).Before(s.AccessExpiresAt)
}

// setAccessLocked assigns the access token and everything derived from it.
func (m *Manager) setAccessLocked(token string) {
	m.sess.AccessToken = token
	m.sess.IsAuthenticated = token != ""
	m.sess.AccessExpiresAt = accessTokenExpiry(token)
}

// snapshotLocked stamps a new version on the session and returns a copy of it.
func (m *Manager) snapshotLocked() versionedSession {
	m.version++
	return versionedSession{version: m.version, session: m.sess.clone()}
}

type versionedSession struct {
	version uint64
	session Session
}

// publish delivers snap to subscribers unless a newer snapshot was already delivered.
func (m *Manager) publish(snap versionedSession) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if snap.version <= m.delivered {
		return
	}
	m.delivered = snap.version
	m.metrics.authenticatedState(snap.session.IsAuthenticated)
	for _, fn := range m.subscribers {
		fn(snap.session.clone())
	}
}

// accessTokenExpiry reads the "exp" claim without verifying the signature; the
// client has no key and only uses it to schedule refreshes.
func accessTokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

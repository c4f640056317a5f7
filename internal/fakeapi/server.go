// Package fakeapi runs an in-process stand-in for the shop REST API: SimpleJWT
// style token endpoints, the identity endpoint and the sales resources. It is
// used by the tests of the client packages and the CLI.
package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/rs/zerolog"
)

// The default account every server starts with.
const (
	DefaultEmail    = "ann@shop.test"
	DefaultPassword = "secret"
	DefaultUsername = "ann"
)

// Route patterns, usable with Calls.
const (
	RouteToken       = "POST /api/" + api.PathToken
	RouteRefresh     = "POST /api/" + api.PathTokenRefresh
	RouteLogout      = "POST /api/" + api.PathLogout
	RouteMe          = "GET /api/" + api.PathCurrentUser
	RouteSignup      = "POST /api/" + api.PathSignup
	RouteSalesList   = "GET /api/" + sales.PathSales
	RouteSalesCreate = "POST /api/" + sales.PathSales
	RouteSalesDelete = "DELETE /api/" + sales.PathSales + "{id}/"
	RouteShops       = "GET /api/" + sales.PathShops
	RoutePerformance = "GET /api/" + sales.PathPerformance
	// RouteEcho answers any authorised request with the JSON body it received.
	RouteEcho = "/api/echo/"
)

type Server struct {
	httpServer *httptest.Server
	mux        *http.ServeMux
	routes     []string

	logger       zerolog.Logger
	lock         sync.Mutex
	nowFunc      func() time.Time
	revokeNext   bool
	signer       *hmacSigner
	accessTTL    time.Duration
	accounts     map[string]*account
	access       map[string]string // access token -> email
	refresh      map[string]string // refresh token -> email
	issuedAccess int
	issuedRefr   int
	calls        map[string]int
	logoutStatus int
	loginGate    chan struct{}
	refreshGate  chan struct{}
	refreshStart chan struct{}

	sales       []sales.Sale
	shops       []sales.Shop
	performance sales.Performance
	nextSaleID  int
}

type Option func(*Server)

// WithAccessTTL makes access tokens signed JWTs expiring after ttl. Without it
// access tokens are opaque ("T1", "T2", ...).
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithLogger sets the logger the server reports its routes to. Servers are
// silent by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNowTime sets the clock used to issue and check tokens (primarily for testing)
func WithNowTime(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithSales(list []sales.Sale) Option {
	return func(s *Server) {
		s.sales = append([]sales.Sale(nil), list...)
		for _, sale := range list {
			s.nextSaleID = max(s.nextSaleID, sale.ID)
		}
	}
}

func WithShops(shops []sales.Shop) Option {
	return func(s *Server) {
		s.shops = append([]sales.Shop(nil), shops...)
	}
}

func WithPerformance(p sales.Performance) Option {
	return func(s *Server) {
		s.performance = p
	}
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, options ...Option) *Server {
	t.Helper()

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       zerolog.Nop(),
		nowFunc:      time.Now,
		signer:       newHMACSigner("fakeapi-signing-key"),
		accounts:     map[string]*account{},
		access:       map[string]string{},
		refresh:      map[string]string{},
		calls:        map[string]int{},
		logoutStatus: http.StatusResetContent,
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.AddAccount(DefaultEmail, DefaultPassword, api.User{ID: 7, Email: DefaultEmail, Username: DefaultUsername}); err != nil {
		t.Fatalf("fakeapi: %v", err)
	}

	s.initRoutes()
	s.httpServer = httptest.NewServer(s)
	t.Cleanup(s.httpServer.Close)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// URL is the API root, with a trailing slash.
func (s *Server) URL() string {
	return s.httpServer.URL + "/api/"
}

// Close stops the server; later requests fail without a response.
func (s *Server) Close() {
	s.httpServer.Close()
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, ChainMiddleware(handler, s.countMiddleware(pattern)))
}

// Calls reports how many requests reached the route.
func (s *Server) Calls(route string) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.calls[route]
}

func (s *Server) SetLogoutStatus(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.logoutStatus = status
}

// SetAccessTTL switches token issuance at runtime, see WithAccessTTL.
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accessTTL = ttl
}

// HoldLogins blocks token requests until release is called.
func (s *Server) HoldLogins() (release func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	gate := make(chan struct{})
	s.loginGate = gate
	return s.releaseFunc(gate, &s.loginGate)
}

// HoldRefreshes blocks refresh requests until release is called. started
// receives once for every request that arrives while held.
func (s *Server) HoldRefreshes() (started <-chan struct{}, release func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	gate := make(chan struct{})
	start := make(chan struct{}, 16)
	s.refreshGate, s.refreshStart = gate, start
	return start, s.releaseFunc(gate, &s.refreshGate)
}

func (s *Server) releaseFunc(gate chan struct{}, slot *chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.lock.Lock()
			if *slot == gate {
				*slot = nil
			}
			s.lock.Unlock()
			close(gate)
		})
	}
}

// Sales returns the sales the server currently holds.
func (s *Server) Sales() []sales.Sale {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]sales.Sale(nil), s.sales...)
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

func (s *Server) countMiddleware(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			s.lock.Lock()
			s.calls[route]++
			s.lock.Unlock()
			next(w, r)
		}
	}
}

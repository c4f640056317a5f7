// Package session owns the client's authentication state: the access/refresh
// token pair, the identity of the signed-in user, and the state machine that
// moves between them.
//
//	Anonymous --Login--> Authenticating --ok--> Authenticated
//	                                    --fail--> Anonymous
//	Authenticated --tick/401--> Refreshing --ok--> Authenticated
//	                                       --rejected--> Expired --cleanup--> Anonymous
//	any --Logout--> Anonymous
//
// A single Manager is shared by every consumer. Consumers read snapshots with
// Session or Subscribe and issue protected calls through HTTPClient.
package session

import (
	"time"

	"github.com/jrsteele09/go-shop-client/api"
)

// State is a node of the session state machine.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ErrorKind classifies LastError.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	// ErrorCredential: the backend rejected the login. The user can correct it.
	ErrorCredential
	// ErrorNetwork: no response was received. The user can retry.
	ErrorNetwork
	// ErrorExpiry: the refresh token was rejected and the session was torn down.
	ErrorExpiry
	// ErrorStorage: the tokens could not be written to durable storage.
	ErrorStorage
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorCredential:
		return "credential"
	case ErrorNetwork:
		return "network"
	case ErrorExpiry:
		return "expiry"
	case ErrorStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Route is a navigation target signalled to the view layer.
type Route string

const (
	RouteHome  Route = "/"
	RouteLogin Route = "/login"
)

// Displayable messages recorded in LastError.
const (
	MsgSessionExpired = "Session expired. Please log in again."
	MsgStorageFailure = "Could not save your session. Please try again."
)

// Session is an immutable snapshot of the authentication state.
// IsAuthenticated is true exactly when AccessToken is non-empty.
type Session struct {
	AccessToken  string
	RefreshToken string
	// User is set once the identity of the current access token has been fetched.
	User            *api.User
	IsAuthenticated bool
	State           State
	LastError       string
	ErrorKind       ErrorKind
	// AccessExpiresAt is the access token's "exp" claim, zero when the token is not a JWT.
	AccessExpiresAt time.Time
	// Generation increases every time the session is torn down.
	Generation uint64
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

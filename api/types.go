package api

// Credentials are the login form values. They are sent once to the token endpoint
// and never stored or logged.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the token endpoint response (SimpleJWT style).
type TokenPair struct {
	// Access is the short-lived bearer credential.
	// Usage: "Authorization: Bearer <access>" on every protected call.
	// Lifespan: minutes; replaced by the refresh endpoint.
	Access string `json:"access"`

	// Refresh is the longer-lived credential, only ever sent to the refresh endpoint.
	// It is not rotated by a refresh: the refresh response carries a new access token only.
	Refresh string `json:"refresh"`
}

// RefreshRequest is the body of the refresh endpoint.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned from the refresh endpoint.
// Some backends rotate and also return a refresh token; it is ignored.
type RefreshResponse struct {
	Access string `json:"access"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// User is the identity record returned by the users/me endpoint.
type User struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName is the best human readable name available for the user.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

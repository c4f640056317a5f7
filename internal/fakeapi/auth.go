package fakeapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-shop-client/api"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const contextKeyEmail contextKey = "email"

type account struct {
	user         api.User
	passwordHash string
}

// hmacSigner signs access tokens with HMAC-SHA256.
type hmacSigner struct {
	secret []byte
}

func newHMACSigner(secret string) *hmacSigner {
	return &hmacSigner{secret: []byte(secret)}
}

func (h *hmacSigner) Sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *hmacSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

// AddAccount registers an account that can log in with email and password.
func (s *Server) AddAccount(email, password string, user api.User) error {
	// MinCost keeps logins fast; these are throwaway credentials.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accounts[email] = &account{user: user, passwordHash: string(hash)}
	return nil
}

func (s *Server) checkPassword(email, password string) bool {
	s.lock.Lock()
	acc, ok := s.accounts[email]
	s.lock.Unlock()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)) == nil
}

// issueAccessLocked returns the next access token, "T<n>" or a JWT whose jti
// is "T<n>" when an access TTL is set.
func (s *Server) issueAccessLocked(email string) (string, error) {
	s.issuedAccess++
	token := fmt.Sprintf("T%d", s.issuedAccess)
	if s.accessTTL > 0 {
		now := s.nowFunc()
		signed, err := s.signer.Sign(jwt.MapClaims{
			"sub":        email,
			"token_type": "access",
			"iat":        now.Unix(),
			"exp":        now.Add(s.accessTTL).Unix(),
			"jti":        token,
		})
		if err != nil {
			return "", err
		}
		token = signed
	}
	if s.revokeNext {
		s.revokeNext = false
		return token, nil
	}
	s.access[token] = email
	return token, nil
}

func (s *Server) issueRefreshLocked(email string) string {
	s.issuedRefr++
	token := fmt.Sprintf("R%d", s.issuedRefr)
	s.refresh[token] = email
	return token
}

// accessOwner reports the account an access token was issued to. Signed
// tokens must also verify and be unexpired.
func (s *Server) accessOwner(token string) (string, bool) {
	s.lock.Lock()
	email, ok := s.access[token]
	s.lock.Unlock()
	if !ok {
		return "", false
	}
	if strings.Count(token, ".") != 2 {
		return email, true
	}
	_, err := jwt.Parse(token, s.signer.verificationKey,
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return email, err == nil
}

// GrantRefresh makes token a valid refresh token for the default account, as
// if it had been issued by an earlier login.
func (s *Server) GrantRefresh(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refresh[token] = DefaultEmail
}

// RevokeNextIssued makes the next access token the server issues invalid from
// the start, as if it were revoked before its first use.
func (s *Server) RevokeNextIssued() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.revokeNext = true
}

// RevokeAccess invalidates one access token.
func (s *Server) RevokeAccess(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.access, token)
}

// RevokeRefresh invalidates one refresh token.
func (s *Server) RevokeRefresh(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.refresh, token)
}

// RevokeAll invalidates every token issued so far.
func (s *Server) RevokeAll() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.access = map[string]string{}
	s.refresh = map[string]string{}
}

// RequireAuth rejects requests without a live bearer access token, in the
// shape SimpleJWT uses.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.", "")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeDetail(w, http.StatusUnauthorized, "Authorization header must contain two space-delimited values", "bad_authorization_header")
				return
			}

			email, ok := s.accessOwner(parts[1])
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type", "token_not_valid")
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), contextKeyEmail, email)))
		}
	}
}

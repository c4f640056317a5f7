package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint paths, relative to the API base URL.
const (
	PathToken        = "token/"
	PathTokenRefresh = "token/refresh/"
	PathLogout       = "logout/"
	PathCurrentUser  = "auth/users/me/"
	PathSignup       = "signup/"
)

const (
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"
	maxErrorBodyBytes = 64 << 10
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Client talks JSON to the shop REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client, e.g. with one whose transport
// attaches the session's bearer token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "[api.New] invalid base URL %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[api.New] base URL %q must be absolute", baseURL)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// With returns a copy of the client with the options applied on top.
func (c *Client) With(options ...Option) *Client {
	clone := *c
	hc := *c.httpClient
	clone.httpClient = &hc
	for _, opt := range options {
		opt(&clone)
	}
	return &clone
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// ObtainToken exchanges credentials for an access/refresh token pair.
func (c *Client) ObtainToken(ctx context.Context, creds Credentials) (*TokenPair, error) {
	if err := validate.Struct(creds); err != nil {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Detail: validationMessage(err)}
	}

	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, PathToken, "", creds, &pair); err != nil {
		return nil, err
	}
	if pair.Access == "" || pair.Refresh == "" {
		return nil, errors.Wrap(shoperrors.ErrMissingToken, "[ObtainToken] access or refresh token")
	}
	return &pair, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp RefreshResponse
	if err := c.doJSON(ctx, http.MethodPost, PathTokenRefresh, "", RefreshRequest{Refresh: refreshToken}, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.Wrap(shoperrors.ErrMissingToken, "[RefreshAccessToken] access token")
	}
	return resp.Access, nil
}

// Logout tells the server the session is over. Any 2xx is success.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, PathLogout, accessToken, struct{}{}, nil)
}

// CurrentUser fetches the identity behind accessToken.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, PathCurrentUser, accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Signup registers a new account. The backend answers with a token pair, but the
// caller is expected to log in explicitly afterwards.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*TokenPair, error) {
	if err := validate.Struct(req); err != nil {
		return nil, &APIError{StatusCode: http.StatusBadRequest, Detail: validationMessage(err)}
	}

	var pair TokenPair
	if err := c.doJSON(ctx, http.MethodPost, PathSignup, "", req, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Do sends a JSON request through the configured http.Client. in may be nil for
// requests without a body; out may be nil when the response body is not needed.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.doJSON(ctx, method, path, "", in, out)
}

// DoBody sends a pre-encoded body (e.g. multipart/form-data) and decodes a JSON response.
func (c *Client) DoBody(ctx context.Context, method, path, contentType string, body *bytes.Buffer, out any) error {
	return c.do(ctx, method, path, "", contentType, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body *bytes.Buffer
	if in != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(in); err != nil {
			return errors.Wrapf(err, "[%s %s] encode request", method, path)
		}
	}
	return c.do(ctx, method, path, bearer, contentTypeJSON, body, out)
}

func (c *Client) do(ctx context.Context, method, path, bearer, contentType string, body *bytes.Buffer, out any) error {
	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		// bytes.Reader lets http.NewRequest set GetBody, so transports can replay it.
		reader = bytes.NewReader(body.Bytes())
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return errors.Wrapf(err, "[%s %s] build request", method, path)
	}

	requestID := uuid.NewString()
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("request failed without response")
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     parseErrorDetail(raw),
			RequestID:  requestID,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "[%s %s] decode response", method, path)
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

package session

import (
	"io"
	"net/http"

	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"golang.org/x/oauth2"
)

// Transport authorises requests with the manager's current access token. A 401
// response triggers a refresh (or waits for the one in flight) and the request
// is retried once with the new token.
type Transport struct {
	manager *Manager
	base    http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base (http.DefaultTransport when nil).
func (m *Manager) NewTransport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{manager: m, base: base}
}

// HTTPClient returns a client whose requests carry the session's bearer token.
func (m *Manager) HTTPClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: m.NewTransport(base)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, sent, err := t.send(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	ctx := req.Context()
	if !replayable(req) {
		if err := t.manager.refreshAfterUnauthorized(ctx, sent); err != nil {
			t.manager.logger.Debug().Err(err).Msg("Refresh after 401 failed")
		}
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if err := t.manager.refreshAfterUnauthorized(ctx, sent); err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, shoperrors.Wrapf(err, "[Transport.RoundTrip] replay body")
		}
		retry.Body = body
	}
	retry.Header.Del("Authorization")

	t.manager.logger.Debug().Str("path", req.URL.Path).Msg("Retrying request with refreshed token")
	resp, _, err = t.send(retry)
	return resp, err
}

// send authorises req with the manager's token and reports the access token it
// was sent with.
func (t *Transport) send(req *http.Request) (*http.Response, string, error) {
	tok, err := t.manager.Token()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, "", err
	}

	inner := &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: t.base}
	resp, err := inner.RoundTrip(req)
	return resp, tok.AccessToken, err
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

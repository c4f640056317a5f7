// Package tokenstore persists the session's access and refresh tokens so that a
// restarted process can resume the session. Every backend stores the same two
// string entries under fixed key names.
package tokenstore

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-shop-client/internal/config"
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
)

// Fixed key names for the two durable entries.
const (
	KeyAccessToken  = "authToken"
	KeyRefreshToken = "refreshToken"
)

// Tokens is the durable mirror of the session's token pair.
type Tokens struct {
	Access  string `json:"authToken"`
	Refresh string `json:"refreshToken"`
}

func (t Tokens) IsZero() bool {
	return t.Access == "" && t.Refresh == ""
}

// Store is durable key/value storage for the token pair.
// Load on an empty store returns zero Tokens and no error.
type Store interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	Clear(ctx context.Context) error
}

// Open builds the Store selected by configuration. The returned close function
// releases backend resources and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.GetStoreBackend() {
	case config.StoreBackendFile:
		return NewFileStore(cfg.GetStoreFile(), cfg.GetStoreKey()), noop, nil
	case config.StoreBackendMemory:
		return NewMemoryStore(), noop, nil
	case config.StoreBackendRedis:
		s, err := NewRedisStoreFromURL(ctx, cfg.GetRedisURL())
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case config.StoreBackendSQLite:
		s, err := OpenSQLiteStore(ctx, cfg.GetSQLitePath())
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", shoperrors.ErrStoreBackend, cfg.GetStoreBackend())
	}
}

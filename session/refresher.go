package session

import (
	"context"
	"errors"
	"sync"
	"time"

	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
)

// Refresher refreshes the session on a fixed interval until it is stopped or its
// context is cancelled.
type Refresher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartRefresher starts the periodic refresh task for this manager, replacing
// (and stopping) any refresher started earlier. Ticks that find the session
// anything other than Authenticated do nothing.
func (m *Manager) StartRefresher(ctx context.Context, interval time.Duration) *Refresher {
	ctx, cancel := context.WithCancel(ctx)
	r := &Refresher{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	previous := m.refresher
	m.refresher = r
	m.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}

	go r.run(ctx, m, interval)
	return r
}

func (r *Refresher) run(ctx context.Context, m *Manager, interval time.Duration) {
	defer close(r.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshOnTick(ctx)
		}
	}
}

// Stop cancels the task and waits for it to exit. It is safe to call more than once.
func (r *Refresher) Stop() {
	r.once.Do(r.cancel)
	<-r.done
}

// Done is closed once the refresher has exited.
func (r *Refresher) Done() <-chan struct{} {
	return r.done
}

func (m *Manager) refreshOnTick(ctx context.Context) {
	snap := m.Session()
	if snap.State != StateAuthenticated || snap.RefreshToken == "" {
		return
	}

	err := m.Refresh(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, shoperrors.ErrNotAuthenticated):
	case errors.Is(err, shoperrors.ErrSessionExpired):
		m.logger.Info().Msg("Scheduled refresh ended the session")
	default:
		m.logger.Err(err).Msg("Scheduled refresh failed")
	}
}

// Close stops the refresher owned by the manager, if any. The session itself is
// left as it is.
func (m *Manager) Close() {
	m.mu.Lock()
	r := m.refresher
	m.refresher = nil
	m.mu.Unlock()

	if r != nil {
		r.Stop()
	}
}

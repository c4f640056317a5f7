package session

import (
	"time"

	"github.com/rs/zerolog"
)

// ManagerOption modifies a Manager at construction.
type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger.With().Str("component", "session").Logger()
	}
}

// WithNavigator sets the function told where the view layer should go after
// login, logout and expiry.
func WithNavigator(navigate func(Route)) ManagerOption {
	return func(m *Manager) {
		if navigate != nil {
			m.navigate = navigate
		}
	}
}

func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithRefreshSkew sets how close to expiry Token refreshes ahead of time.
func WithRefreshSkew(skew time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshSkew = skew
	}
}

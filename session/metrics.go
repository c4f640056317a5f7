package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts session lifecycle outcomes. A nil *Metrics records nothing.
type Metrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewMetrics creates the session collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result (success, credential, network, storage).",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Access token refreshes by result (success, transient, expired).",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shop",
			Subsystem: "session",
			Name:      "logouts_total",
			Help:      "Session teardowns by server notification outcome (yes, failed, skipped).",
		}, []string{"notified"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shop",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while the session holds an access token.",
		}),
	}

	for _, c := range []prometheus.Collector{m.logins, m.refreshes, m.logouts, m.authenticated} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) logout(notified string) {
	if m == nil {
		return
	}
	m.logouts.WithLabelValues(notified).Inc()
}

func (m *Metrics) authenticatedState(on bool) {
	if m == nil {
		return
	}
	if on {
		m.authenticated.Set(1)
		return
	}
	m.authenticated.Set(0)
}

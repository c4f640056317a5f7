package session_test

import (
	"testing"

	"github.com/jrsteele09/go-shop-client/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountLifecycle(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	metrics, err := session.NewMetrics(reg)
	require.NoError(t, err)

	f := setupTestFixture(t, session.WithMetrics(metrics))

	require.False(t, f.manager.Login(t.Context(), testEmail, "wrong"))
	f.login(t)
	require.NoError(t, f.manager.Refresh(t.Context()))
	f.manager.Logout(t.Context())

	count, err := testutil.GatherAndCount(reg,
		"shop_session_logins_total",
		"shop_session_refreshes_total",
		"shop_session_logouts_total",
		"shop_session_authenticated",
	)
	require.NoError(t, err)
	require.Equal(t, 5, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "/" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	require.Equal(t, 1.0, values["shop_session_logins_total/credential"])
	require.Equal(t, 1.0, values["shop_session_logins_total/success"])
	require.Equal(t, 1.0, values["shop_session_refreshes_total/success"])
	require.Equal(t, 1.0, values["shop_session_logouts_total/yes"])
	require.Equal(t, 0.0, values["shop_session_authenticated"])
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := session.NewMetrics(reg)
	require.NoError(t, err)

	_, err = session.NewMetrics(reg)
	require.Error(t, err)
}

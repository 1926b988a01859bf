package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	"github.com/stretchr/testify/require"
)

// TestNilMetrics tests that a nil collector set is safe to call
func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Orchestration(metrics.OutcomeRedirected, 0.1)
		m.UpstreamCall("refresh", nil)
		m.SessionsInvalidated("user.deleted", 1, 0)
		m.Event("user.deleted", metrics.OutcomeEventProcessed)
	})
}

// TestHandler tests that recorded values are exposed
func TestHandler(t *testing.T) {
	m := metrics.New()
	m.Orchestration(metrics.OutcomeStaleTokens, 0.2)
	m.UpstreamCall("bootstrap", errors.New("boom"))
	m.SessionsInvalidated("user.deleted", 3, 2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var invalidated float64
	for _, mf := range families {
		if mf.GetName() == "auth_gateway_sessions_invalidated_total" {
			invalidated = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(3), invalidated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `auth_gateway_post_login_runs_total{outcome="stale_tokens"} 1`))
	require.True(t, strings.Contains(body, `auth_gateway_upstream_calls_total{operation="bootstrap",result="error"} 1`))
	require.True(t, strings.Contains(body, "auth_gateway_session_invalidation_failures_total 2"))
}

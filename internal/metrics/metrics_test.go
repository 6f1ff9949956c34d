package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveRateLimit("login", true)
	m.ObserveRateLimit("login", false)
	m.Login("invalid_credentials")
	m.Verification("SMS_VERIFICATION", "verified")
	m.Lockout()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Lockouts))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `security_login_total{outcome="invalid_credentials"} 1`)
}

func TestNilSecurityIsNoop(t *testing.T) {
	var m *Security
	m.Login("ok")
	m.Lockout()
	m.ObserveRateLimit("x", false)
	m.Verification("a", "b")
}

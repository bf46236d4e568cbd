package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSignal("heartbeat")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SignalsRouted.WithLabelValues("heartbeat")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SignalsRouted.WithLabelValues("heartbeat")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSignal("x")
		m.RecordDeliveryFailure("x")
		m.RecordListenerFailure("x")
		m.RecordLifecycle("app", "start", nil, time.Millisecond)
		m.SetRunningApps(3)
		m.IncBridgeConnections()
		NewTimer(m, "app", "stop").Stop(errors.New("x"))
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}

func TestRecordLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordLifecycle("app", "start", nil, time.Millisecond)
	m.RecordLifecycle("app", "start", errors.New("init"), time.Millisecond)
	m.RecordLifecycle("app", "start", errors.New("init"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LifecycleOps.WithLabelValues("app", "start", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LifecycleOps.WithLabelValues("app", "start", "failure")))
	assert.Equal(t, int64(2), m.Snapshot().LifecycleFailures)
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "/apps", "200", 100*time.Millisecond)
	m.RecordHTTPRequest("GET", "/apps/:name", "404", 300*time.Millisecond)
	m.RecordDeliveryFailure("ping")
	m.IncBridgeConnections()
	m.IncBridgeConnections()
	m.DecBridgeConnections()

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(1), snap.DeliveryFailures)
	assert.Equal(t, int64(1), snap.ActiveConnections)
	assert.InDelta(t, 0.2, snap.AvgLatencySeconds, 1e-9)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/apps/:name", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/apps/vault", "/apps/mail", "/missing"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/apps/:name", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "shell_http_requests_total"))
	assert.True(t, strings.Contains(body, "shell_uptime_seconds"))
}

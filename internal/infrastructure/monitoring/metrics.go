package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shell"

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Relay metrics
	SignalsRouted    *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	ListenerFailures *prometheus.CounterVec
	HistorySize      prometheus.Gauge
	RelayModules     *prometheus.GaugeVec

	// Lifecycle metrics
	LifecycleOps      *prometheus.CounterVec
	LifecycleDuration *prometheus.HistogramVec
	RunningApps       prometheus.Gauge
	ActivePlugins     prometheus.Gauge

	// Registry metrics
	RegistryApps     prometheus.Gauge
	RegistryPersists *prometheus.CounterVec

	// Bridge metrics
	BridgeConnections prometheus.Gauge
	BridgeMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON stats endpoint
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	SignalsRouted     int64   `json:"signals_routed"`
	DeliveryFailures  int64   `json:"delivery_failures"`
	ListenerFailures  int64   `json:"listener_failures"`
	LifecycleFailures int64   `json:"lifecycle_failures"`
	ActiveConnections int64   `json:"active_connections"`
	AvgLatencySeconds float64 `json:"avg_latency_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SignalsRouted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_routed_total",
				Help:      "Total number of signals routed through the relay",
			},
			[]string{"type"},
		),
		DeliveryFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_delivery_failures_total",
				Help:      "Module handlers that failed while receiving a signal",
			},
			[]string{"type"},
		),
		ListenerFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signal_listener_failures_total",
				Help:      "Listeners that failed while receiving a signal",
			},
			[]string{"type"},
		),
		HistorySize: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signal_history_size",
				Help:      "Number of envelopes retained in relay history",
			},
		),
		RelayModules: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "relay_modules",
				Help:      "Modules registered with the relay by status",
			},
			[]string{"status"},
		),

		LifecycleOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_operations_total",
				Help:      "Lifecycle operations by component, operation and result",
			},
			[]string{"component", "op", "result"},
		),
		LifecycleDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lifecycle_operation_duration_seconds",
				Help:      "Lifecycle operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"component", "op"},
		),
		RunningApps: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "apps_running",
				Help:      "Number of running modules",
			},
		),
		ActivePlugins: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plugins_active",
				Help:      "Number of active plugins",
			},
		),

		RegistryApps: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_apps",
				Help:      "Number of entries in the registry",
			},
		),
		RegistryPersists: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_persists_total",
				Help:      "Registry store writes by result",
			},
			[]string{"result"},
		),

		BridgeConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bridge_connections",
				Help:      "Number of open stream bridge connections",
			},
		),
		BridgeMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_messages_total",
				Help:      "Stream bridge messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordSignal records a routed envelope
func (m *Metrics) RecordSignal(signalType string) {
	if m == nil {
		return
	}
	m.SignalsRouted.WithLabelValues(signalType).Inc()
	m.mu.Lock()
	m.snapshot.SignalsRouted++
	m.mu.Unlock()
}

// RecordDeliveryFailure records a module handler failure
func (m *Metrics) RecordDeliveryFailure(signalType string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(signalType).Inc()
	m.mu.Lock()
	m.snapshot.DeliveryFailures++
	m.mu.Unlock()
}

// RecordListenerFailure records a listener failure
func (m *Metrics) RecordListenerFailure(signalType string) {
	if m == nil {
		return
	}
	m.ListenerFailures.WithLabelValues(signalType).Inc()
	m.mu.Lock()
	m.snapshot.ListenerFailures++
	m.mu.Unlock()
}

// SetHistorySize sets the relay history gauge
func (m *Metrics) SetHistorySize(n int) {
	if m == nil {
		return
	}
	m.HistorySize.Set(float64(n))
}

// SetRelayModules sets the relay registration gauge for one status
func (m *Metrics) SetRelayModules(status string, n int) {
	if m == nil {
		return
	}
	m.RelayModules.WithLabelValues(status).Set(float64(n))
}

// RecordLifecycle records a lifecycle operation outcome
func (m *Metrics) RecordLifecycle(component, op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
		m.mu.Lock()
		m.snapshot.LifecycleFailures++
		m.mu.Unlock()
	}
	m.LifecycleOps.WithLabelValues(component, op, result).Inc()
	m.LifecycleDuration.WithLabelValues(component, op).Observe(duration.Seconds())
}

// SetRunningApps sets the running modules gauge
func (m *Metrics) SetRunningApps(n int) {
	if m == nil {
		return
	}
	m.RunningApps.Set(float64(n))
}

// SetActivePlugins sets the active plugins gauge
func (m *Metrics) SetActivePlugins(n int) {
	if m == nil {
		return
	}
	m.ActivePlugins.Set(float64(n))
}

// SetRegistryApps sets the number of apps in registry
func (m *Metrics) SetRegistryApps(n int) {
	if m == nil {
		return
	}
	m.RegistryApps.Set(float64(n))
}

// RecordRegistryPersist records a store write
func (m *Metrics) RecordRegistryPersist(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RegistryPersists.WithLabelValues(result).Inc()
}

// IncBridgeConnections increments open bridge connections
func (m *Metrics) IncBridgeConnections() {
	if m == nil {
		return
	}
	m.BridgeConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecBridgeConnections decrements open bridge connections
func (m *Metrics) DecBridgeConnections() {
	if m == nil {
		return
	}
	m.BridgeConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordBridgeMessage records a bridge frame
func (m *Metrics) RecordBridgeMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.BridgeMessages.WithLabelValues(direction, msgType).Inc()
}

// Snapshot returns current values for the JSON stats endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	if snap.TotalRequests > 0 {
		snap.AvgLatencySeconds = snap.totalDuration / float64(snap.TotalRequests)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}

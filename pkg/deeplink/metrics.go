package deeplink

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

// Navigation results used as the "result" label.
const (
	ResultCompleted  = "completed"
	ResultFailed     = "failed"
	ResultSuperseded = "superseded"
	ResultSkipped    = "skipped"
	ResultCancelled  = "cancelled"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "deeplink").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "deeplink",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the synchronization metrics. A nil *Metrics records nothing.
type Metrics struct {
	inflowWrites       *prometheus.CounterVec
	inflowErrors       *prometheus.CounterVec
	navigations        *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	activeSyncs        prometheus.Gauge
}

// NewMetrics creates and registers the metrics:
//
//   - deeplink_inflow_writes_total{kind}: fields assigned from the URL
//   - deeplink_inflow_errors_total{kind}: URL values that could not be applied
//   - deeplink_navigations_total{kind,result}: outflow navigations by outcome
//   - deeplink_navigation_duration_seconds{kind}: time until the router answered
//   - deeplink_active_syncs: activated views not yet closed
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		inflowWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inflow_writes_total",
			Help:        "Total number of view fields assigned from the URL",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		inflowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inflow_errors_total",
			Help:        "Total number of URL values that could not be applied to a view",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of outflow navigations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "result"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Time from navigation request to router answer",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		activeSyncs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_syncs",
			Help:        "Number of activated views being synchronized",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) recordInflowWrite(kind syncconfig.Kind) {
	if m == nil {
		return
	}
	m.inflowWrites.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordInflowError(kind syncconfig.Kind) {
	if m == nil {
		return
	}
	m.inflowErrors.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordNavigation(kind syncconfig.Kind, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(string(kind), result).Inc()
	if d > 0 {
		m.navigationDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
	}
}

func (m *Metrics) syncOpened() {
	if m == nil {
		return
	}
	m.activeSyncs.Inc()
}

func (m *Metrics) syncClosed() {
	if m == nil {
		return
	}
	m.activeSyncs.Dec()
}

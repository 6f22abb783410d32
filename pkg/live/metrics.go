package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors for the live-patch
// subsystem.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "psui").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the metrics collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics holds the Prometheus collectors shared by the registry and the
// dispatcher. Construct one per server and attach it with SetMetrics.
type Metrics struct {
	connections   prometheus.Gauge
	patchesQueued prometheus.Counter
	patchesPushed prometheus.Counter
	patchesPolled prometheus.Counter
	cleanupsRun   prometheus.Counter
	sendFailures  prometheus.Counter
	reloads       prometheus.Counter
}

// NewMetrics registers and returns the live-patch metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "psui",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "connections",
			Help:        "Number of open websocket connections",
			ConstLabels: config.ConstLabels,
		}),
		patchesQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "patches_queued_total",
			Help:        "Total patches accepted by the dispatcher",
			ConstLabels: config.ConstLabels,
		}),
		patchesPushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "patches_pushed_total",
			Help:        "Total patches delivered over a websocket push",
			ConstLabels: config.ConstLabels,
		}),
		patchesPolled: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "patches_polled_total",
			Help:        "Total patches drained through the HTTP poll fallback",
			ConstLabels: config.ConstLabels,
		}),
		cleanupsRun: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "cleanups_total",
			Help:        "Total orphan cleanup callbacks invoked",
			ConstLabels: config.ConstLabels,
		}),
		sendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "send_failures_total",
			Help:        "Total websocket sends that failed and dropped the connection",
			ConstLabels: config.ConstLabels,
		}),
		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "live",
			Name:        "reload_broadcasts_total",
			Help:        "Total development reload broadcasts",
			ConstLabels: config.ConstLabels,
		}),
	}
}

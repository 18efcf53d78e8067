package history

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig configures the Prometheus collectors of a Bridge.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "urlstate").
	Namespace string

	// Subsystem is the metrics subsystem (default: "history").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
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

// Metrics holds the navigation collectors. A nil *Metrics records nothing.
type Metrics struct {
	navigations *prometheus.CounterVec
	suppressed  prometheus.Counter
	pops        prometheus.Counter
}

// NewMetrics creates and registers the collectors. Registering against a
// registry that already holds them reuses the existing collectors, so
// several bridges (one per session) share the same series.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "urlstate",
		Subsystem: "history",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	return &Metrics{
		navigations: register(config.Registry, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "History writes by method",
			ConstLabels: config.ConstLabels,
		}, []string{"method"})),

		suppressed: register(config.Registry, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_suppressed_total",
			Help:        "History writes whose listener notification was suppressed",
			ConstLabels: config.ConstLabels,
		})),

		pops: register(config.Registry, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pops_total",
			Help:        "Back/forward navigations",
			ConstLabels: config.ConstLabels,
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) navigation(src Source) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(src.String()).Inc()
}

func (m *Metrics) suppress() {
	if m == nil {
		return
	}
	m.suppressed.Inc()
}

func (m *Metrics) pop() {
	if m == nil {
		return
	}
	m.pops.Inc()
}

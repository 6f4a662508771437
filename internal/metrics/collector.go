package metrics

import (
	"time"

	"github.com/goliatone/go-statusfor/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes the collector metrics when none is configured.
const DefaultNamespace = "statusfor"

const (
	actionActivated   = "activated"
	actionDeactivated = "deactivated"
)

// Collector is a prometheus.Collector counting applied status transitions
// and timing status commands. It doubles as the evaluator's transition
// observer.
type Collector struct {
	transitions *prometheus.CounterVec
	commands    *prometheus.HistogramVec
}

var (
	_ prometheus.Collector          = (*Collector)(nil)
	_ interfaces.TransitionObserver = (*Collector)(nil)
)

// NewCollector returns a new Collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "The number of status timestamps set or cleared.",
			}, []string{"entity_type", "status", "action"},
		),
		commands: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "status_command_duration_seconds",
				Help:      "Time taken to execute status commands.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 6),
			}, []string{"command", "outcome"},
		),
	}
}

// StatusChanged is part of the interfaces.TransitionObserver interface.
func (c *Collector) StatusChanged(entityType, status string, active bool) {
	action := actionDeactivated
	if active {
		action = actionActivated
	}
	c.transitions.WithLabelValues(entityType, status, action).Inc()
}

// CommandObserved records the duration of an executed status command.
func (c *Collector) CommandObserved(command, outcome string, duration time.Duration) {
	c.commands.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.commands.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.commands.Collect(ch)
}

// Package metrics exports visibility decisions as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	visibility "github.com/goliatone/go-visibility"
)

const namespace = "visibility"

// Collector counts decisions by outcome and reason and observes how long each
// evaluation took. It implements visibility.DecisionLogger.
type Collector struct {
	decisions *prometheus.CounterVec
	failures  prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewCollector builds the metrics and registers them with reg. A nil reg
// leaves them unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Evaluated candidates by outcome and reason.",
			},
			[]string{"outcome", "reason"},
		),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_errors_total",
			Help:      "Candidates whose evaluation returned an error.",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "decision_duration_seconds",
				Help:      "Time spent resolving targets and deciding one candidate.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"outcome"},
		),
	}
	if reg != nil {
		for _, collector := range []prometheus.Collector{c.decisions, c.failures, c.duration} {
			if err := reg.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// LogDecision implements visibility.DecisionLogger.
func (c *Collector) LogDecision(event visibility.DecisionLogEvent) {
	if c == nil {
		return
	}
	if event.Err != nil {
		c.failures.Inc()
		return
	}
	outcome := event.Decision.Outcome.String()
	c.decisions.WithLabelValues(outcome, string(event.Decision.Reason)).Inc()
	c.duration.WithLabelValues(outcome).Observe(event.Duration.Seconds())
}

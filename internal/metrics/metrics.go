package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "placement"

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors of the placement runner, registered on their own registry
type Metrics struct {
	Registry *prometheus.Registry

	runs          *prometheus.CounterVec
	ignoredStarts prometheus.Counter
	runSeconds    prometheus.Histogram
	objective     prometheus.Gauge
	placed        prometheus.Gauge
}

func New() *Metrics {
	metrics := &Metrics{
		Registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished placement runs by outcome.",
		}, []string{"outcome"}),
		ignoredStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_starts_total",
			Help:      "Start requests ignored because a run was not idle.",
		}),
		runSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a placement run from start to finish.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_objective",
			Help:      "Objective value of the last succeeded run.",
		}),
		placed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_placed_pupils",
			Help:      "Pupils placed by the last succeeded run.",
		}),
	}

	metrics.Registry.MustRegister(
		metrics.runs,
		metrics.ignoredStarts,
		metrics.runSeconds,
		metrics.objective,
		metrics.placed,
		collectors.NewGoCollector(),
	)
	return metrics
}

func (metrics *Metrics) RunSucceeded(elapsed time.Duration, objective float64, placed int) {
	metrics.runs.WithLabelValues(OutcomeSucceeded).Inc()
	metrics.runSeconds.Observe(elapsed.Seconds())
	metrics.objective.Set(objective)
	metrics.placed.Set(float64(placed))
}

func (metrics *Metrics) RunFailed(elapsed time.Duration) {
	metrics.runs.WithLabelValues(OutcomeFailed).Inc()
	metrics.runSeconds.Observe(elapsed.Seconds())
}

func (metrics *Metrics) StartIgnored() {
	metrics.ignoredStarts.Inc()
}

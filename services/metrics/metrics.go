// Package metricsvc exposes bootstrap runs as prometheus metrics.
package metricsvc

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/masomodb/core/bootstrap"
)

const namespace = "masomo"

type Recorder struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	steps    *prometheus.CounterVec
	warnings prometheus.Counter
}

var _ bootstrap.Metrics = (*Recorder)(nil)

// New registers the bootstrap collectors, plus the go and process collectors, on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_runs_total",
			Help:      "Bootstrap runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bootstrap_run_duration_seconds",
			Help:      "Duration of bootstrap runs.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_steps_total",
			Help:      "Bootstrap step results by step and outcome.",
		}, []string{"step", "outcome"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_warnings_total",
			Help:      "Warnings reported by bootstrap runs.",
		}),
	}
	r.registry.MustRegister(
		r.runs, r.duration, r.steps, r.warnings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveStep(step string, outcome bootstrap.Outcome) {
	r.steps.WithLabelValues(step, outcome.String()).Inc()
}

func (r *Recorder) ObserveRun(report bootstrap.InitializationReport) {
	outcome := "success"
	if !report.Success {
		outcome = "failed"
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.duration.Observe(report.Duration.Seconds())
	r.warnings.Add(float64(len(report.Warnings)))
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

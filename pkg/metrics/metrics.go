// Package metrics collects run metrics in a private prometheus registry.
//
// CI jobs are short-lived, so metrics are not scraped: they are written to a
// file picked up by the node-exporter textfile collector of the runner.
package metrics

import (
	"github.com/oneconcern/monorel/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics of release runs
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
	bumps       *prometheus.CounterVec
	tags        prometheus.Counter
	publication *prometheus.CounterVec
}

// New registers the run metrics in a fresh registry
func New(opts ...Option) *Metrics {
	s := &settings{namespace: "monorel", constLabels: prometheus.Labels{}}
	for _, apply := range opts {
		apply(s)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   s.namespace,
			Name:        "runs_total",
			Help:        "Pipeline runs by engine, final state and cause.",
			ConstLabels: s.constLabels,
		}, []string{"engine", "state", "cause"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   s.namespace,
			Name:        "run_duration_seconds",
			Help:        "Duration of pipeline runs.",
			ConstLabels: s.constLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"engine"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   s.namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "End time of the last run, by final state.",
			ConstLabels: s.constLabels,
		}, []string{"state"}),
		bumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   s.namespace,
			Name:        "bumped_packages_total",
			Help:        "Package versions bumped, by impact.",
			ConstLabels: s.constLabels,
		}, []string{"impact"}),
		tags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   s.namespace,
			Name:        "release_tags_total",
			Help:        "Release tags pushed.",
			ConstLabels: s.constLabels,
		}),
		publication: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   s.namespace,
			Name:        "published_packages_total",
			Help:        "Package versions handed to the registry, by outcome.",
			ConstLabels: s.constLabels,
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.runs, m.duration, m.lastRun, m.bumps, m.tags, m.publication)
	return m
}

// Registry holding the run metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run. A nil Metrics records nothing.
func (m *Metrics) ObserveRun(run *model.Run) {
	if m == nil || run == nil {
		return
	}
	engine := string(run.Engine)
	if engine == "" {
		engine = "none"
	}
	m.runs.WithLabelValues(engine, string(run.State), run.Cause).Inc()
	if !run.FinishedAt.IsZero() {
		m.duration.WithLabelValues(engine).Observe(run.Duration(run.FinishedAt).Seconds())
		m.lastRun.WithLabelValues(string(run.State)).Set(float64(run.FinishedAt.Unix()))
	}

	if run.Bump != nil {
		for _, bump := range run.Bump.Bumps {
			m.bumps.WithLabelValues(bump.Impact.String()).Inc()
		}
		m.tags.Add(float64(len(run.Bump.Tags)))
	}
	if run.Publish != nil {
		m.publication.WithLabelValues("published").Add(float64(len(run.Publish.Published)))
		m.publication.WithLabelValues("already_published").Add(float64(len(run.Publish.AlreadyPublished)))
	}
}

// WriteToTextfile writes the metrics in the prometheus text format, atomically
func (m *Metrics) WriteToTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.registry)
}

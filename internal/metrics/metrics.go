// Package metrics records job-run statistics. The engine talks to the
// Recorder interface; Prometheus is the production implementation and Nop
// the default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives job-run measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	JobStarted(kind string)
	JobFinished(kind, outcome string, elapsed time.Duration)
	Failure(kind, cause string)
	StageObserved(stage string, elapsed time.Duration)
	ArtifactWritten(kind string, bytes int64)
}

// Nop discards every measurement
type Nop struct{}

func (Nop) JobStarted(string)                         {}
func (Nop) JobFinished(string, string, time.Duration) {}
func (Nop) Failure(string, string)                    {}
func (Nop) StageObserved(string, time.Duration)       {}
func (Nop) ArtifactWritten(string, int64)             {}

// Prometheus implements Recorder with client_golang collectors. All metric
// names carry the namespace as a prefix.
type Prometheus struct {
	jobsTotal     *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	stageSeconds  *prometheus.HistogramVec
	jobSeconds    *prometheus.HistogramVec
	artifactBytes *prometheus.HistogramVec
	inProgress    *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them with reg.
// It panics if registration fails (e.g., duplicate metric names).
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished job-runs by media kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Failed job-runs by error kind and cause.",
			},
			[]string{"kind", "cause"},
		),
		stageSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of resolve, download and post-processing stages.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"stage"},
		),
		jobSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "End-to-end duration of job-runs.",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200},
			},
			[]string{"kind"},
		),
		// 1MB .. 4GB
		artifactBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_size_bytes",
				Help:      "Size of the main artifact of successful job-runs.",
				Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 7),
			},
			[]string{"kind"},
		),
		inProgress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_progress",
				Help:      "Job-runs currently executing.",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(
		m.jobsTotal,
		m.failuresTotal,
		m.stageSeconds,
		m.jobSeconds,
		m.artifactBytes,
		m.inProgress,
	)
	return m
}

// JobStarted increments the in-progress gauge
func (m *Prometheus) JobStarted(kind string) {
	m.inProgress.WithLabelValues(kind).Inc()
}

// JobFinished decrements the in-progress gauge and counts the outcome
func (m *Prometheus) JobFinished(kind, outcome string, elapsed time.Duration) {
	m.inProgress.WithLabelValues(kind).Dec()
	m.jobsTotal.WithLabelValues(kind, outcome).Inc()
	m.jobSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Prometheus) Failure(kind, cause string) {
	if cause == "" {
		cause = "none"
	}
	m.failuresTotal.WithLabelValues(kind, cause).Inc()
}

func (m *Prometheus) StageObserved(stage string, elapsed time.Duration) {
	m.stageSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func (m *Prometheus) ArtifactWritten(kind string, bytes int64) {
	if bytes > 0 {
		m.artifactBytes.WithLabelValues(kind).Observe(float64(bytes))
	}
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Prometheus)(nil)
)

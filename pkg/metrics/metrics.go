package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// KeysTotal tracks the size of the in-memory status map by status.
	KeysTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "builddb_keys_total",
			Help: "Number of interned keys by status (missing, loaded, waiting, ready, error)",
		},
		[]string{"status"},
	)

	// KeysBuilt counts keys executed this run.
	KeysBuilt = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "builddb_keys_built",
			Help: "Number of keys built (executed) so far this run",
		},
	)

	// KeysSkipped counts keys left over from a prior run (ready but not built this step).
	KeysSkipped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "builddb_keys_skipped",
			Help: "Number of keys carried over from an earlier step without re-running",
		},
	)

	// KeysErrored counts keys whose execution failed this run.
	KeysErrored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "builddb_keys_errored",
			Help: "Number of keys whose execution produced an error this run",
		},
	)

	// ExecuteDuration measures wall time spent in the execute collaborator.
	ExecuteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builddb_execute_duration_seconds",
			Help:    "Time spent running a single key's execute call",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ExecuteTotal counts execute invocations, split on outcome.
	ExecuteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builddb_execute_total",
			Help: "Total execute invocations by outcome (ready, error)",
		},
		[]string{"outcome"},
	)

	// BuildDuration measures the wall time of a top-level build() call.
	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builddb_build_duration_seconds",
			Help:    "Time taken for a build() call to resolve, including any barrier wait",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BarrierWaitDuration measures time a caller spent blocked on a barrier.
	BarrierWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builddb_barrier_wait_duration_seconds",
			Help:    "Time a build() caller spent blocked waiting on outstanding dependencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// JournalWriteDuration measures journal append latency.
	JournalWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builddb_journal_write_duration_seconds",
			Help:    "Time taken to append a single record to the journal",
			Buckets: prometheus.DefBuckets,
		},
	)

	// JournalReplayDuration measures time spent replaying the journal at startup.
	JournalReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builddb_journal_replay_duration_seconds",
			Help:    "Time taken to replay the journal into the status map on withDatabase",
			Buckets: prometheus.DefBuckets,
		},
	)

	// LintFailuresTotal counts validity-checker mismatches, by run.
	LintFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builddb_lint_failures_total",
			Help: "Total number of stored-value mismatches found by the post-run validity checker",
		},
	)

	// RecursionErrorsTotal counts cycle detections at enqueue time.
	RecursionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builddb_recursion_errors_total",
			Help: "Total number of RuleRecursion errors raised at build() enqueue time",
		},
	)

	// Step reports the current process's Step counter.
	Step = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "builddb_step",
			Help: "The Step counter for the current process",
		},
	)
)

func init() {
	prometheus.MustRegister(
		KeysTotal,
		KeysBuilt,
		KeysSkipped,
		KeysErrored,
		ExecuteDuration,
		ExecuteTotal,
		BuildDuration,
		BarrierWaitDuration,
		JournalWriteDuration,
		JournalReplayDuration,
		LintFailuresTotal,
		RecursionErrorsTotal,
		Step,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

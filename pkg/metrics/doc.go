/*
Package metrics provides Prometheus instrumentation for the build database
and scheduler.

Metrics cover the status-map population (by status), execute/journal
latency, build-call wait time, and the counters a lint/validity run and a
cycle-detecting enqueue produce. All metrics are registered at package init
and exposed over HTTP via Handler for scraping.

# Usage

	import "github.com/chemist/builddb/pkg/metrics"

	http.Handle("/metrics", metrics.Handler())

	timer := metrics.NewTimer()
	// ... run execute for a key ...
	timer.ObserveDuration(metrics.ExecuteDuration)
	metrics.ExecuteTotal.WithLabelValues("ready").Inc()

The progress aggregator (pkg/database) updates KeysTotal, KeysBuilt,
KeysSkipped, and KeysErrored each time Database.Progress is called rather
than per-key, since those are folds over the whole status map.
*/
package metrics

package database

import (
	"time"

	"github.com/chemist/builddb/pkg/metrics"
)

// Progress summarizes the status map's current population by status,
// plus a built/skipped split of the Ready set for this Step, each with
// its accumulated execution duration.
type Progress struct {
	Missing int
	Loaded  int
	Waiting int
	Ready   int
	Errored int
	Built   int
	Skipped int

	// BuiltDuration/SkippedDuration/UnknownDuration sum the recorded
	// Execution of every key counted in the matching bucket above.
	BuiltDuration   time.Duration
	SkippedDuration time.Duration
	UnknownDuration time.Duration

	// EstimatedRemaining sums the recorded Execution of every Waiting
	// key that carries a prior Result, as a rough estimate of how much
	// work is still outstanding. UnknownRemaining counts Waiting keys
	// with no prior Result to estimate from (a fresh Missing key that
	// has never run), so their cost isn't silently dropped from the
	// total — it just can't be quantified yet.
	EstimatedRemaining time.Duration
	UnknownRemaining   int
}

// Progress snapshots the status map and publishes it to the
// KeysTotal/KeysBuilt/KeysSkipped/KeysErrored gauges. Built and Errored
// are counted separately: a key that failed this run is never counted
// as built, even though its execute collaborator did run.
func (db *Database) Progress() Progress {
	db.mu.Lock()
	defer db.mu.Unlock()

	var p Progress
	for _, e := range db.entries {
		switch e.status.Kind {
		case KindMissing:
			p.Missing++
		case KindLoaded:
			p.Loaded++
			if e.status.Result != nil {
				p.UnknownDuration += e.status.Result.Execution
			}
		case KindWaiting:
			p.Waiting++
			if e.status.Result != nil {
				p.EstimatedRemaining += e.status.Result.Execution
			} else {
				p.UnknownRemaining++
			}
		case KindReady:
			p.Ready++
			if e.status.Result.Built == db.step {
				p.Built++
				p.BuiltDuration += e.status.Result.Execution
			} else {
				p.Skipped++
				p.SkippedDuration += e.status.Result.Execution
			}
		case KindError:
			p.Errored++
		}
	}

	metrics.KeysTotal.WithLabelValues("missing").Set(float64(p.Missing))
	metrics.KeysTotal.WithLabelValues("loaded").Set(float64(p.Loaded))
	metrics.KeysTotal.WithLabelValues("waiting").Set(float64(p.Waiting))
	metrics.KeysTotal.WithLabelValues("ready").Set(float64(p.Ready))
	metrics.KeysTotal.WithLabelValues("error").Set(float64(p.Errored))
	metrics.KeysBuilt.Set(float64(p.Built))
	metrics.KeysSkipped.Set(float64(p.Skipped))
	metrics.KeysErrored.Set(float64(p.Errored))

	return p
}

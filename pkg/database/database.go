// Package database implements the build database: an interned key
// table, a status map guarded by a single coarse-grained lock, and the
// scheduler (reduce/run/check) that drives the stored/execute
// collaborators in pkg/ops over a bounded worker pool from pkg/pool. Its
// state survives restarts via pkg/journal.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/journal"
	"github.com/chemist/builddb/pkg/log"
	"github.com/chemist/builddb/pkg/metrics"
	"github.com/chemist/builddb/pkg/ops"
	"github.com/chemist/builddb/pkg/pool"
	"github.com/chemist/builddb/pkg/witness"
)

// Config configures a Database opened by WithDatabase.
type Config struct {
	// Dir is the directory the journal's bbolt file lives in.
	Dir string
	// Ops is the per-key collaborator the scheduler calls; required.
	Ops ops.Ops
	// Pool runs execute calls under a concurrency bound. Defaults to a
	// pool.New(4) if nil.
	Pool pool.Pool
	// Registry decodes Values read back from the journal. Defaults to
	// witness.NewRegistry() if nil.
	Registry *witness.Registry
	// Assume overrides the normal dirtiness check for every key this
	// database instance builds.
	Assume buildtypes.Assume
}

// Database is the build database. All fields below mu must only be
// read or written while holding it; no method here blocks on I/O or a
// collaborator call while holding the lock — reduce/run/check release it
// before calling into pkg/ops or pkg/journal and reacquire it only to
// record the outcome.
type Database struct {
	mu      sync.Mutex
	intern  *internTable
	entries map[buildtypes.Id]*entry

	journal *journal.Journal
	ops     ops.Ops
	pool    pool.Pool
	assume  buildtypes.Assume
	step    buildtypes.Step
	runID   string
}

// WithDatabase opens (or creates) the journal under cfg.Dir, replays it
// into a fresh Database, bumps and persists the Step counter, and runs
// fn with the result. The journal is closed once fn returns, whether or
// not it errored.
func WithDatabase(cfg Config, fn func(*Database) error) error {
	if cfg.Ops == nil {
		return errors.New("database: Config.Ops is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = witness.NewRegistry()
	}
	p := cfg.Pool
	if p == nil {
		p = pool.New(4)
	}

	j, err := journal.Open(cfg.Dir, registry)
	if err != nil {
		return fmt.Errorf("database: open journal: %w", err)
	}
	defer j.Close()

	timer := metrics.NewTimer()
	records, lastStep, err := j.Replay()
	timer.ObserveDuration(metrics.JournalReplayDuration)
	if err != nil {
		return fmt.Errorf("database: replay journal: %w", err)
	}

	db := &Database{
		intern:  newInternTable(),
		entries: make(map[buildtypes.Id]*entry, len(records)),
		journal: j,
		ops:     cfg.Ops,
		pool:    p,
		assume:  cfg.Assume,
		step:    lastStep + 1,
		runID:   uuid.NewString(),
	}
	for id, rec := range records {
		db.intern.restore(id, rec.Key)
		if rec.Loaded {
			db.entries[id] = &entry{key: rec.Key, status: Status{Kind: KindLoaded, Result: rec.Result}}
		} else {
			db.entries[id] = &entry{key: rec.Key, status: Status{Kind: KindMissing}}
		}
	}

	if err := j.WriteStep(db.step); err != nil {
		return fmt.Errorf("database: persist step: %w", err)
	}
	metrics.Step.Set(float64(db.step))

	log.WithRunID(db.runID).With().Str("component", "database").Logger().Info().
		Uint32("step", uint32(db.step)).
		Int("restored_keys", len(records)).
		Msg("database opened")

	return fn(db)
}

// Build resolves keys to their current values, running rules as needed,
// and blocks until every one has either produced a value or failed. It
// is safe to call concurrently from multiple goroutines, including from
// inside another key's execute collaborator via ops.ExecContext.Need.
func (db *Database) Build(keys []buildtypes.Key) ([]buildtypes.Value, error) {
	timer := metrics.NewTimer()
	values, err := db.build(Stack{}, keys)
	timer.ObserveDuration(metrics.BuildDuration)
	return values, err
}

// Step reports the current process's Step counter.
func (db *Database) Step() buildtypes.Step {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.step
}

// RunID returns the correlation id stamped on this process's build, for
// tying together the log lines and metrics a single invocation produces.
func (db *Database) RunID() string {
	return db.runID
}

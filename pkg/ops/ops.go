// Package ops defines the collaborator contract the scheduler drives for
// every key: stored (probe the external world for the current value) and
// execute (run the rule body, possibly demanding further keys along the
// way). pkg/ops/fileops.go supplies the default, shell-backed
// implementation; a host program may substitute its own Ops.
package ops

import (
	"time"

	"github.com/chemist/builddb/pkg/buildtypes"
)

// ExecContext is threaded into Execute so a rule body can demand further
// keys without reaching back into the scheduler package. Each call to
// Need becomes one DependencyGroup on the Result the scheduler assembles
// once Execute returns — so calling Need twice records two groups, while
// passing both keys to one Need call records a single group containing
// both.
type ExecContext struct {
	// Need builds (or waits for) the given keys and returns their
	// current values in the same order, or the first error encountered.
	Need func(keys ...buildtypes.Key) ([]buildtypes.Value, error)
}

// Ops is the per-key collaborator the scheduler calls from reduce/run.
type Ops interface {
	// Stored probes the outside world for key's current value without
	// running any rule. The scheduler calls this to decide whether a key
	// loaded from the journal is still clean. ok is false when the key
	// has no observable external value yet (e.g. target file absent).
	Stored(key buildtypes.Key) (value buildtypes.Value, ok bool, err error)

	// Execute runs key's rule body, returning its value, the wall time
	// spent, and any traces the rule recorded. Execute may call
	// ctx.Need any number of times.
	Execute(ctx *ExecContext, key buildtypes.Key) (value buildtypes.Value, duration time.Duration, traces []buildtypes.Trace, err error)
}

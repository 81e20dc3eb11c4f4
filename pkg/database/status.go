package database

import "github.com/chemist/builddb/pkg/buildtypes"

// StatusKind discriminates a key's lifecycle stage in the status map.
type StatusKind int

const (
	// KindMissing: interned but with no recorded value — never built, or
	// journaled as Missing after a failed execute.
	KindMissing StatusKind = iota
	// KindLoaded: a Result was read back from the journal at startup,
	// but nothing has yet confirmed it is still valid this run.
	KindLoaded
	// KindWaiting: a reduce/run is in flight; Pending holds the
	// continuations to fire once it resolves.
	KindWaiting
	// KindReady: resolved this run, Result is current.
	KindReady
	// KindError: the rule (or a dependency) failed this run.
	KindError
)

func (k StatusKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindLoaded:
		return "loaded"
	case KindWaiting:
		return "waiting"
	case KindReady:
		return "ready"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is one key's current entry in the status map. Only the fields
// relevant to Kind are meaningful: Result for Loaded/Ready (and as the
// prior value carried into Waiting while a Loaded key is being
// reconfirmed), Pending for Waiting, Err for Error.
type Status struct {
	Kind    StatusKind
	Result  *buildtypes.Result
	Pending *Pending
	Err     error
}

type entry struct {
	key    buildtypes.Key
	status Status
}

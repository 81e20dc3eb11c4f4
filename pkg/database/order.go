package database

import (
	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/diag"
	"github.com/chemist/builddb/pkg/toposort"
)

// DependencyOrder returns every interned key in an order where each key
// appears after everything its last recorded Result depended on — the
// order cmd/builddb's debug graph output and a from-scratch replay would
// want to process keys in. It fails with a *diag.Diagnostic (Kind
// DatabaseCyclic) if the recorded dependency edges form a cycle, which
// should only be reachable through a bug in how Depends was recorded.
func (db *Database) DependencyOrder() ([]buildtypes.Key, error) {
	db.mu.Lock()
	deps := make(map[buildtypes.Id][]buildtypes.Id, len(db.entries))
	for id, e := range db.entries {
		var flat []buildtypes.Id
		if e.status.Result != nil {
			for _, group := range e.status.Result.Depends {
				flat = append(flat, group...)
			}
		}
		deps[id] = flat
	}
	db.mu.Unlock()

	display := func(id buildtypes.Id) string {
		return db.keyOf(id).String()
	}

	order, err := toposort.Order(deps, display)
	if err != nil {
		cycleErr := err.(*toposort.Error)
		return nil, diag.NewDatabaseCyclic(cycleErr.Offending, cycleErr.Overflow)
	}

	keys := make([]buildtypes.Key, len(order))
	for i, id := range order {
		keys[i] = db.keyOf(id)
	}
	return keys, nil
}

// DebugGraph renders the last-recorded dependency graph as Graphviz DOT,
// for a `builddb graph` debug command.
func (db *Database) DebugGraph() string {
	db.mu.Lock()
	deps := make(map[buildtypes.Id][]buildtypes.Id, len(db.entries))
	for id, e := range db.entries {
		var flat []buildtypes.Id
		if e.status.Result != nil {
			for _, group := range e.status.Result.Depends {
				flat = append(flat, group...)
			}
		}
		deps[id] = flat
	}
	db.mu.Unlock()

	display := func(id buildtypes.Id) string {
		return db.keyOf(id).String()
	}
	return toposort.Graph(deps, display)
}

package database

import (
	"encoding/json"
	"sort"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/diag"
	"github.com/chemist/builddb/pkg/toposort"
)

// JSONTrace is one named span of work recorded against a result.
type JSONTrace struct {
	Message string  `json:"message"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// JSONEntry is one row of ShowJSON's dump. Depends, Built and Changed are
// all compacted relative to this dump rather than the raw intern table:
// Depends indexes into the dump's own topological order, and Built/Changed
// rank the distinct step values this dump's entries carry (0 = most
// recent) rather than the raw Step counter.
type JSONEntry struct {
	Name      string      `json:"name"`
	Built     int         `json:"built"`
	Changed   int         `json:"changed"`
	Depends   [][]int     `json:"depends,omitempty"`
	Execution int64       `json:"execution"`
	Traces    []JSONTrace `json:"traces,omitempty"`
}

// ShowJSON renders every key whose status carries a Result — Ready,
// Loaded, or Waiting-with-a-prior-value — as a JSON array in topological
// order, so everything a key depends on appears before it in the
// output. Keys with no Result (Missing, Error, a Waiting key that never
// had a prior) are dropped, and so is any dependency edge pointing at
// one of them. The journal's own step-counter record never enters the
// status map as a key, so there is nothing here to filter for it.
func (db *Database) ShowJSON() ([]byte, error) {
	type row struct {
		key    buildtypes.Key
		result *buildtypes.Result
	}

	db.mu.Lock()
	rows := make(map[buildtypes.Id]row, len(db.entries))
	for id, e := range db.entries {
		if e.status.Result == nil {
			continue
		}
		rows[id] = row{key: e.key, result: e.status.Result}
	}
	db.mu.Unlock()

	deps := make(map[buildtypes.Id][]buildtypes.Id, len(rows))
	for id, r := range rows {
		var flat []buildtypes.Id
		for _, group := range r.result.Depends {
			for _, d := range group {
				if _, ok := rows[d]; ok {
					flat = append(flat, d)
				}
			}
		}
		deps[id] = flat
	}

	display := func(id buildtypes.Id) string {
		return rows[id].key.String()
	}
	order, err := toposort.Order(deps, display)
	if err != nil {
		cycleErr := err.(*toposort.Error)
		return nil, diag.NewDatabaseCyclic(cycleErr.Offending, cycleErr.Overflow)
	}

	index := make(map[buildtypes.Id]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	seen := make(map[buildtypes.Step]bool)
	for _, r := range rows {
		seen[r.result.Built] = true
		seen[r.result.Changed] = true
	}
	distinct := make([]buildtypes.Step, 0, len(seen))
	for s := range seen {
		distinct = append(distinct, s)
	}
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] > distinct[j] })
	rank := make(map[buildtypes.Step]int, len(distinct))
	for i, s := range distinct {
		rank[s] = i
	}

	entries := make([]JSONEntry, len(order))
	for i, id := range order {
		r := rows[id]
		je := JSONEntry{
			Name:      r.key.String(),
			Built:     rank[r.result.Built],
			Changed:   rank[r.result.Changed],
			Execution: int64(r.result.Execution),
		}
		for _, group := range r.result.Depends {
			var indices []int
			for _, d := range group {
				if _, ok := rows[d]; ok {
					indices = append(indices, index[d])
				}
			}
			if len(indices) > 0 {
				je.Depends = append(je.Depends, indices)
			}
		}
		for _, t := range r.result.Traces {
			je.Traces = append(je.Traces, JSONTrace{Message: t.Message, Start: t.Start, End: t.End})
		}
		entries[i] = je
	}
	return json.MarshalIndent(entries, "", "  ")
}

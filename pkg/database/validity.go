package database

import (
	"encoding/hex"
	"fmt"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/diag"
	"github.com/chemist/builddb/pkg/metrics"
)

// CheckValid re-probes every Ready key's stored collaborator and
// compares the result against the recorded value, without touching the
// status map or running any rule. It reports a *diag.Diagnostic (Kind
// LintFailure) naming every key that disagrees, or nil if the database
// is fully consistent with the outside world right now.
func (db *Database) CheckValid() error {
	type pair struct {
		key    buildtypes.Key
		result *buildtypes.Result
	}

	db.mu.Lock()
	pairs := make([]pair, 0, len(db.entries))
	for _, e := range db.entries {
		if e.status.Kind == KindReady {
			pairs = append(pairs, pair{key: e.key, result: e.status.Result})
		}
	}
	db.mu.Unlock()

	var mismatches []diag.Mismatch
	for _, p := range pairs {
		if special, ok := p.result.Value.(buildtypes.AlwaysRebuilds); ok && special.AlwaysRebuilds() {
			continue
		}
		value, ok, err := db.ops.Stored(p.key)
		if err != nil {
			return fmt.Errorf("database: checking %s: %w", p.key, err)
		}
		if !ok || !value.Equal(p.result.Value) {
			mismatches = append(mismatches, diag.Mismatch{
				Key:      p.key.String(),
				Recorded: encodeForDisplay(p.result.Value),
				Stored:   encodeForDisplay(value),
			})
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	metrics.LintFailuresTotal.Add(float64(len(mismatches)))
	return diag.NewLintFailure(mismatches)
}

func encodeForDisplay(v buildtypes.Value) string {
	if v == nil {
		return "<absent>"
	}
	data, err := v.Encode()
	if err != nil {
		return fmt.Sprintf("<%s: unencodable>", v.Tag())
	}
	return fmt.Sprintf("%s:%s", v.Tag(), hex.EncodeToString(data))
}

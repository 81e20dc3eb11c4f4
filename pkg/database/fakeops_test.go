package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/ops"
	"github.com/chemist/builddb/pkg/witness"
)

// ruleFunc computes a key's value given a need callback addressed by
// plain names rather than buildtypes.Key, to keep test rules readable.
type ruleFunc func(need func(names ...string) ([]buildtypes.Value, error)) (buildtypes.Value, error)

// fakeOps is an in-memory Ops for scheduler tests: "world" models the
// outside state stored() probes, "rules" models named targets with a
// computed value, and execCount lets tests assert a key was (or wasn't)
// re-executed.
type fakeOps struct {
	mu        sync.Mutex
	world     map[string]buildtypes.Value
	rules     map[string]ruleFunc
	execCount map[string]int
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		world:     make(map[string]buildtypes.Value),
		rules:     make(map[string]ruleFunc),
		execCount: make(map[string]int),
	}
}

func nameKey(name string) buildtypes.Key {
	return buildtypes.NewKey("test", []byte(name))
}

func (f *fakeOps) set(name string, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.world[name] = witness.StringValue(value)
}

func (f *fakeOps) execCountOf(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execCount[name]
}

func (f *fakeOps) Stored(key buildtypes.Key) (buildtypes.Value, bool, error) {
	name := string(key.Payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.world[name]
	return v, ok, nil
}

func (f *fakeOps) Execute(ctx *ops.ExecContext, key buildtypes.Key) (buildtypes.Value, time.Duration, []buildtypes.Trace, error) {
	name := string(key.Payload)

	f.mu.Lock()
	f.execCount[name]++
	rule, hasRule := f.rules[name]
	f.mu.Unlock()

	if !hasRule {
		f.mu.Lock()
		v, ok := f.world[name]
		f.mu.Unlock()
		if !ok {
			return nil, 0, nil, fmt.Errorf("fakeops: no stored value for leaf %q", name)
		}
		return v, 0, nil, nil
	}

	need := func(names ...string) ([]buildtypes.Value, error) {
		keys := make([]buildtypes.Key, len(names))
		for i, n := range names {
			keys[i] = nameKey(n)
		}
		return ctx.Need(keys...)
	}

	value, err := rule(need)
	if err != nil {
		return nil, 0, nil, err
	}
	f.mu.Lock()
	f.world[name] = value
	f.mu.Unlock()
	return value, 0, nil, nil
}

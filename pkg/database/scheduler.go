package database

import (
	"errors"
	"fmt"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/diag"
	"github.com/chemist/builddb/pkg/log"
	"github.com/chemist/builddb/pkg/metrics"
	"github.com/chemist/builddb/pkg/ops"
)

// task pairs an id with its key for the brief window between deciding a
// key needs reduce/run and actually dispatching it onto the pool.
type task struct {
	id  buildtypes.Id
	key buildtypes.Key
}

// build is the scheduler's single entry point: it interns keys, resolves
// anything already Ready/Error immediately, joins anything already
// Waiting, and kicks off reduce for anything Missing or Loaded — then
// blocks until everything it's waiting on has resolved. A nested call
// (non-empty stack) waits inside pool.Block, so the pool can admit other
// work in the meantime; a top-level call waits on the barrier directly.
func (db *Database) build(stack Stack, keys []buildtypes.Key) ([]buildtypes.Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	type slot struct {
		result *buildtypes.Result
		err    error
	}

	ids := make([]buildtypes.Id, len(keys))
	slots := make([]slot, len(keys))

	db.mu.Lock()
	for i, k := range keys {
		ids[i] = db.internLocked(k)
	}

	if cycleID, ok := checkStack(ids, stack); ok {
		cycleKey := db.entries[cycleID].key
		frames := stack.Display()
		db.mu.Unlock()
		metrics.RecursionErrorsTotal.Inc()
		return nil, diag.NewRuleRecursion(cycleKey.String(), frames)
	}

	var torun []task
	needsWait := 0
	for _, id := range ids {
		e := db.entries[id]
		if e.status.Kind == KindMissing || e.status.Kind == KindLoaded || e.status.Kind == KindWaiting {
			needsWait++
		}
	}

	var bar *barrier
	if needsWait > 0 {
		bar = newBarrier(needsWait)
	}

	for i, id := range ids {
		e := db.entries[id]
		switch e.status.Kind {
		case KindMissing:
			p := newPending()
			e.status = Status{Kind: KindWaiting, Pending: p}
			torun = append(torun, task{id: id, key: e.key})
			afterWaiting(p, bar.fire)
		case KindLoaded:
			prior := e.status.Result
			p := newPending()
			e.status = Status{Kind: KindWaiting, Pending: p, Result: prior}
			torun = append(torun, task{id: id, key: e.key})
			afterWaiting(p, bar.fire)
		case KindWaiting:
			afterWaiting(e.status.Pending, bar.fire)
		case KindReady:
			slots[i].result = e.status.Result
		case KindError:
			slots[i].err = e.status.Err
		}
	}
	db.mu.Unlock()

	for _, t := range torun {
		t := t
		childStack := stack.push(t.id, t.key)
		db.pool.Go(func() { db.reduce(childStack, t.id) })
	}

	if bar != nil {
		barTimer := metrics.NewTimer()
		if len(stack.ids) == 0 {
			// The top-level Build() caller never holds a pool slot of its
			// own (it isn't a goroutine the pool dispatched), so there is
			// nothing to give back here — just wait.
			<-bar.done
		} else {
			db.pool.Block(func() {
				<-bar.done
			})
		}
		barTimer.ObserveDuration(metrics.BarrierWaitDuration)
	}

	db.mu.Lock()
	for i, id := range ids {
		if slots[i].result != nil || slots[i].err != nil {
			continue
		}
		e := db.entries[id]
		switch e.status.Kind {
		case KindReady:
			slots[i].result = e.status.Result
		case KindError:
			slots[i].err = e.status.Err
		default:
			slots[i].err = diag.NewInternalInvariant(
				fmt.Sprintf("key %s left in status %s after its barrier resolved", e.key, e.status.Kind))
		}
	}
	db.mu.Unlock()

	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
	}
	values := make([]buildtypes.Value, len(slots))
	for i, s := range slots {
		values[i] = s.result.Value
	}
	return values, nil
}

// internLocked must be called with db.mu held.
func (db *Database) internLocked(key buildtypes.Key) buildtypes.Id {
	id, isNew := db.intern.lookup(key)
	if isNew {
		db.entries[id] = &entry{key: key, status: Status{Kind: KindMissing}}
	}
	return id
}

// reduce decides whether a key needs to actually run: a Missing key
// always runs, a Loaded key is first checked against its recorded
// dependencies and the stored collaborator.
func (db *Database) reduce(stack Stack, id buildtypes.Id) {
	db.mu.Lock()
	e := db.entries[id]
	key := e.key
	prior := e.status.Result
	db.mu.Unlock()

	if prior == nil {
		db.run(stack, id, key, nil)
		return
	}
	db.check(stack, id, key, prior)
}

// check decides whether a Loaded key's prior Result is still valid.
// Early cutoff: if every dependency group's ids still carry a Changed
// step no newer than prior.Built, the rule itself never reruns — we
// still re-probe stored once, since the key's own external artifact
// could have drifted (or vanished) independent of its declared deps.
// Under AssumeClean a stored value is accepted even when a dependency
// changed; only a key with no stored value reruns.
func (db *Database) check(stack Stack, id buildtypes.Id, key buildtypes.Key, prior *buildtypes.Result) {
	if db.assume == buildtypes.AssumeSkip {
		db.markReady(id, prior)
		return
	}
	if db.assume == buildtypes.AssumeDirty {
		db.run(stack, id, key, prior)
		return
	}

	dirty := false
	for _, group := range prior.Depends {
		groupKeys := make([]buildtypes.Key, len(group))
		for i, depID := range group {
			groupKeys[i] = db.keyOf(depID)
		}
		if _, err := db.build(stack, groupKeys); err != nil {
			// A failed dependency counts as changed: rerun the rule, whose
			// own Need call then surfaces that dependency's error.
			dirty = true
			break
		}
		for _, depID := range group {
			if db.changedAfter(depID, prior.Built) {
				dirty = true
				break
			}
		}
		if dirty {
			break
		}
	}

	if dirty && db.assume != buildtypes.AssumeClean {
		db.run(stack, id, key, prior)
		return
	}

	value, ok, err := db.ops.Stored(key)
	if err != nil {
		db.markError(id, fmt.Errorf("database: stored(%s): %w", key, err))
		return
	}

	if db.assume == buildtypes.AssumeClean {
		if !ok {
			db.run(stack, id, key, prior)
			return
		}
		db.markReady(id, withValue(prior, value))
		return
	}

	if ok && value.Equal(prior.Value) {
		db.markReady(id, prior)
		return
	}
	db.run(stack, id, key, prior)
}

// withValue returns a copy of prior with Value replaced by the
// freshly-probed stored value, leaving Built/Changed untouched — a key
// found clean without running its rule keeps the step it was last
// actually (re)computed in, so the progress aggregator can still tell a
// reused key apart from one built this step.
func withValue(prior *buildtypes.Result, value buildtypes.Value) *buildtypes.Result {
	cp := *prior
	cp.Value = value
	return &cp
}

// run invokes the key's execute collaborator, recording whatever
// dependencies it demands along the way via ctx.Need.
func (db *Database) run(stack Stack, id buildtypes.Id, key buildtypes.Key, prior *buildtypes.Result) {
	var depends []buildtypes.DependencyGroup
	need := func(keys ...buildtypes.Key) ([]buildtypes.Value, error) {
		values, err := db.build(stack, keys)
		if err != nil {
			return nil, err
		}
		db.mu.Lock()
		group := make(buildtypes.DependencyGroup, len(keys))
		for i, k := range keys {
			group[i] = db.internLocked(k)
		}
		db.mu.Unlock()
		depends = append(depends, group)
		return values, nil
	}

	ctx := &ops.ExecContext{Need: need}
	timer := metrics.NewTimer()
	value, duration, traces, err := db.ops.Execute(ctx, key)
	timer.ObserveDuration(metrics.ExecuteDuration)

	if err != nil {
		metrics.ExecuteTotal.WithLabelValues("error").Inc()
		// A key that errors this run can no longer vouch for whatever
		// Result a prior process journaled: reload on the next process
		// must see it as unbuilt, not replay the stale value.
		if werr := db.journal.WriteMissing(id, key); werr != nil {
			log.WithComponent("scheduler").Warn().
				Str("key", key.String()).
				Err(werr).
				Msg("failed to journal missing after execute error")
		}
		// A dependency that already failed (or cycled) surfaces here as
		// a *diag.Diagnostic returned through ctx.Need; propagate it
		// as-is instead of burying it under another RuleExecution layer.
		var d *diag.Diagnostic
		if errors.As(err, &d) {
			db.markError(id, err)
		} else {
			db.markError(id, diag.NewRuleExecution(key.String(), err))
		}
		return
	}
	metrics.ExecuteTotal.WithLabelValues("ready").Inc()

	changed := db.step
	if prior != nil && prior.Value != nil && prior.Value.Equal(value) {
		changed = prior.Changed
	}
	result := &buildtypes.Result{
		Value:     value,
		Built:     db.step,
		Changed:   changed,
		Depends:   depends,
		Execution: duration,
		Traces:    traces,
	}

	if err := db.journal.WriteLoaded(id, key, result); err != nil {
		db.markError(id, diag.NewInternalInvariant(fmt.Sprintf("journal write failed for %s: %v", key, err)))
		return
	}
	db.markReady(id, result)

	log.WithComponent("scheduler").Debug().
		Str("key", key.String()).
		Dur("execution", duration).
		Msg("rule executed")
}

// keyOf must not be called with db.mu held.
func (db *Database) keyOf(id buildtypes.Id) buildtypes.Key {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.entries[id].key
}

// changedAfter reports whether id's recorded Result changed more
// recently than built. A dependency that isn't Ready (e.g. it errored)
// is conservatively treated as changed, forcing its dependent to rerun.
func (db *Database) changedAfter(id buildtypes.Id, built buildtypes.Step) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	e := db.entries[id]
	if e.status.Kind != KindReady {
		return true
	}
	return e.status.Result.Changed > built
}

func (db *Database) markReady(id buildtypes.Id, result *buildtypes.Result) {
	db.mu.Lock()
	e := db.entries[id]
	pending := e.status.Pending
	e.status = Status{Kind: KindReady, Result: result}
	if pending != nil {
		runWaiting(pending)
	}
	db.mu.Unlock()
}

func (db *Database) markError(id buildtypes.Id, err error) {
	db.mu.Lock()
	e := db.entries[id]
	pending := e.status.Pending
	e.status = Status{Kind: KindError, Err: err}
	if pending != nil {
		runWaiting(pending)
	}
	db.mu.Unlock()
}

// Package buildtypes holds the core data model shared by every other
// package in the build database: the interned Id/Key pair, the Step
// counter, the heterogeneous Value contract, and the Result record a
// completed key leaves behind.
package buildtypes

import (
	"fmt"
	"strconv"
	"time"
)

// Id is an interned, process-local handle for a Key. Ids are assigned in
// intern order starting at 0 and never reused or renumbered across a
// process lifetime; only the Key <-> Id mapping is durable across runs.
type Id uint32

// Step counts restarts of the build database. It increments by one each
// time withDatabase opens a journal, and is persisted so the next process
// can tell which on-disk records predate the current run.
type Step uint32

// Key names one unit of work: a type tag plus an opaque, tag-specific
// payload. Two keys are equal iff both fields match byte-for-byte.
type Key struct {
	Tag     string
	Payload []byte
}

// NewKey builds a Key from a tag and payload.
func NewKey(tag string, payload []byte) Key {
	return Key{Tag: tag, Payload: append([]byte(nil), payload...)}
}

// cacheKey returns a value suitable for use as a Go map key, since
// Key itself contains a slice and is not comparable.
func (k Key) cacheKey() string {
	return k.Tag + "\x00" + string(k.Payload)
}

// CacheKey exposes cacheKey to packages that need to index keys in a map
// (the intern table, the journal) without re-deriving the convention.
func (k Key) CacheKey() string {
	return k.cacheKey()
}

// String renders a Key for diagnostics and logs.
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.Tag, strconv.Quote(string(k.Payload)))
}

// Value is the heterogeneous result a rule produces for a Key. Two
// concrete Value types coexist in the same status map and journal, so
// every implementation must self-identify via Tag and support structural
// equality via Equal — the scheduler uses Equal to decide whether a
// freshly executed value actually changed from the one on record.
type Value interface {
	// Tag names the concrete witness this value encodes/decodes with.
	Tag() string
	// Equal reports whether other represents the same value. Equal must
	// return false (never panic) when other has a different concrete type.
	Equal(other Value) bool
	// Encode serializes the value for the journal. The companion decoder
	// is registered separately, under the same tag, in pkg/witness.
	Encode() ([]byte, error)
}

// AlwaysRebuilds is implemented by a Value whose stored() probe can never
// give the validity checker a meaningful comparison — a phony target with
// no durable on-disk artifact, say. A Value satisfying this is exempted
// from CheckValid's stored-vs-recorded comparison, rather than being
// reported as permanently drifted simply because nothing is there to
// re-probe.
type AlwaysRebuilds interface {
	Value
	AlwaysRebuilds() bool
}

// DependencyGroup is one ordered batch of ids demanded by a single need
// call during a rule's execution. Result.Depends is a sequence of these
// groups, in calling order — the shape the validity checker and the
// dependency-order emitter both rely on.
type DependencyGroup []Id

// Trace records one named span of work performed while producing a
// Result, for display in progress reporting and the JSON dump.
type Trace struct {
	Message string
	Start   float64 // seconds since the rule started executing
	End     float64
}

// Result is everything the database remembers about a key once it has
// been built or loaded from the journal.
type Result struct {
	Value     Value
	Built     Step // the step in which this value was last (re)computed
	Changed   Step // the step in which Value last differed from its predecessor
	Depends   []DependencyGroup
	Execution time.Duration
	Traces    []Trace
}

// Assume overrides the normal dirtiness check for a build() call.
type Assume int

const (
	// AssumeNone runs the ordinary stored/execute comparison.
	AssumeNone Assume = iota
	// AssumeDirty forces execute even if stored/equality checks would
	// otherwise mark the key clean.
	AssumeDirty
	// AssumeSkip treats the key as up to date without calling stored or
	// execute at all, so long as a Result is already on record.
	AssumeSkip
	// AssumeClean accepts the current on-disk value reported by stored
	// without re-running execute, keeping the recorded Built/Changed
	// steps. A key for which stored reports no value is re-executed.
	AssumeClean
)

func (a Assume) String() string {
	switch a {
	case AssumeDirty:
		return "dirty"
	case AssumeSkip:
		return "skip"
	case AssumeClean:
		return "clean"
	default:
		return "none"
	}
}

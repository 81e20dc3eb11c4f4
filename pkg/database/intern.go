package database

import "github.com/chemist/builddb/pkg/buildtypes"

// internTable is the Key <-> Id mapping. Ids are assigned in first-seen
// order within a process, but restore lets a journal replay reinstate
// the exact ids a prior process already committed to the journal, so a
// key's id never changes across restarts once it has been built.
type internTable struct {
	byKey map[string]buildtypes.Id
	byID  map[buildtypes.Id]buildtypes.Key
	next  buildtypes.Id
}

func newInternTable() *internTable {
	return &internTable{
		byKey: make(map[string]buildtypes.Id),
		byID:  make(map[buildtypes.Id]buildtypes.Key),
	}
}

// restore reinstates a (id, key) pair read back from the journal. It
// must be called before any lookup calls populate the table for this
// process, and bumps next past id so fresh keys never collide with it.
func (t *internTable) restore(id buildtypes.Id, key buildtypes.Key) {
	t.byKey[key.CacheKey()] = id
	t.byID[id] = key
	if id >= t.next {
		t.next = id + 1
	}
}

// lookup returns key's id, interning it if this is the first time this
// process has seen it. The second return reports whether it was new.
func (t *internTable) lookup(key buildtypes.Key) (buildtypes.Id, bool) {
	if id, ok := t.byKey[key.CacheKey()]; ok {
		return id, false
	}
	id := t.next
	t.next++
	t.byKey[key.CacheKey()] = id
	t.byID[id] = key
	return id, true
}

func (t *internTable) key(id buildtypes.Id) buildtypes.Key {
	return t.byID[id]
}

func (t *internTable) len() int {
	return len(t.byID)
}

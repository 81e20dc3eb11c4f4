// Package journal persists the build database's status map across
// process restarts using go.etcd.io/bbolt. A bbolt transaction commits
// atomically, so there is no torn-tail-record recovery to implement: a
// record is either fully durable or was never written.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/metrics"
	"github.com/chemist/builddb/pkg/witness"
)

var (
	bucketRecords = []byte("records")
	bucketMeta    = []byte("meta")
	keyStep       = []byte("step")
)

// Record is one key's persisted status: either Missing (no recorded
// value, just the Key/Id assignment) or Loaded with its last Result.
type Record struct {
	Key    buildtypes.Key
	Loaded bool
	Result *buildtypes.Result
}

// Journal is the bbolt-backed append/replay collaborator for the status
// map. The zero value is not usable; construct one with Open.
type Journal struct {
	db       *bolt.DB
	registry *witness.Registry
}

// Open creates or opens the journal file at filepath.Join(dir,
// "builddb.db"), creating its buckets if this is a fresh database.
func Open(dir string, registry *witness.Registry) (*Journal, error) {
	path := filepath.Join(dir, "builddb.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return fmt.Errorf("journal: create records bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return fmt.Errorf("journal: create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db, registry: registry}, nil
}

// Close releases the underlying bbolt file handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

func idKey(id buildtypes.Id) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(id))
	return b
}

// wireKey/wireResult mirror buildtypes.Key/Result in a JSON-friendly
// shape: Key.Payload and Value both need a witness-aware encode/decode
// step that json.Marshal can't do on its own.
type wireKey struct {
	Tag     string
	Payload []byte
}

type wireValue struct {
	Tag  string
	Data []byte
}

type wireTrace struct {
	Message string
	Start   float64
	End     float64
}

type wireResult struct {
	Value     wireValue
	Built     uint32
	Changed   uint32
	Depends   [][]uint32
	Execution int64 // nanoseconds
	Traces    []wireTrace
}

type wireRecord struct {
	Key    wireKey
	Loaded bool
	Result *wireResult
}

func toWireKey(k buildtypes.Key) wireKey {
	return wireKey{Tag: k.Tag, Payload: k.Payload}
}

func fromWireKey(w wireKey) buildtypes.Key {
	return buildtypes.NewKey(w.Tag, w.Payload)
}

func toWireResult(r *buildtypes.Result) (*wireResult, error) {
	if r == nil {
		return nil, nil
	}
	data, err := r.Value.Encode()
	if err != nil {
		return nil, fmt.Errorf("journal: encode value: %w", err)
	}
	depends := make([][]uint32, len(r.Depends))
	for i, group := range r.Depends {
		ids := make([]uint32, len(group))
		for j, id := range group {
			ids[j] = uint32(id)
		}
		depends[i] = ids
	}
	traces := make([]wireTrace, len(r.Traces))
	for i, t := range r.Traces {
		traces[i] = wireTrace{Message: t.Message, Start: t.Start, End: t.End}
	}
	return &wireResult{
		Value:     wireValue{Tag: r.Value.Tag(), Data: data},
		Built:     uint32(r.Built),
		Changed:   uint32(r.Changed),
		Depends:   depends,
		Execution: int64(r.Execution),
		Traces:    traces,
	}, nil
}

func (j *Journal) fromWireResult(w *wireResult) (*buildtypes.Result, error) {
	if w == nil {
		return nil, nil
	}
	value, err := j.registry.Decode(w.Value.Tag, w.Value.Data)
	if err != nil {
		return nil, err
	}
	depends := make([]buildtypes.DependencyGroup, len(w.Depends))
	for i, ids := range w.Depends {
		group := make(buildtypes.DependencyGroup, len(ids))
		for k, id := range ids {
			group[k] = buildtypes.Id(id)
		}
		depends[i] = group
	}
	traces := make([]buildtypes.Trace, len(w.Traces))
	for i, t := range w.Traces {
		traces[i] = buildtypes.Trace{Message: t.Message, Start: t.Start, End: t.End}
	}
	return &buildtypes.Result{
		Value:     value,
		Built:     buildtypes.Step(w.Built),
		Changed:   buildtypes.Step(w.Changed),
		Depends:   depends,
		Execution: durationOf(w.Execution),
		Traces:    traces,
	}, nil
}

// WriteMissing records that id/key is known (interned) but has no valid
// value on record: it was never built, or its last execute failed.
func (j *Journal) WriteMissing(id buildtypes.Id, key buildtypes.Key) error {
	return j.write(id, wireRecord{Key: toWireKey(key), Loaded: false})
}

// WriteLoaded records id/key's current Result.
func (j *Journal) WriteLoaded(id buildtypes.Id, key buildtypes.Key, result *buildtypes.Result) error {
	wr, err := toWireResult(result)
	if err != nil {
		return err
	}
	return j.write(id, wireRecord{Key: toWireKey(key), Loaded: true, Result: wr})
}

func (j *Journal) write(id buildtypes.Id, rec wireRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal record %d: %w", id, err)
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.JournalWriteDuration)
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(idKey(id), data)
	})
}

// WriteStep persists the current process Step, so the next process can
// recover it on replay.
func (j *Journal) WriteStep(step buildtypes.Step) error {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(step))
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyStep, b)
	})
}

// Replay reads every persisted record plus the last written Step. The
// returned map is keyed by Id; the caller is responsible for folding it
// into a fresh intern table and status map.
func (j *Journal) Replay() (map[buildtypes.Id]Record, buildtypes.Step, error) {
	records := make(map[buildtypes.Id]Record)
	var step buildtypes.Step

	err := j.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketMeta).Get(keyStep); b != nil {
			step = buildtypes.Step(binary.BigEndian.Uint32(b))
		}
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var wr wireRecord
			if err := json.Unmarshal(v, &wr); err != nil {
				return fmt.Errorf("journal: unmarshal record %x: %w", k, err)
			}
			id := buildtypes.Id(binary.BigEndian.Uint32(k))
			result, err := j.fromWireResult(wr.Result)
			if err != nil {
				return fmt.Errorf("journal: decode record %d: %w", id, err)
			}
			records[id] = Record{Key: fromWireKey(wr.Key), Loaded: wr.Loaded, Result: result}
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return records, step, nil
}

// Package witness maps a Value's type tag to the decoder that can
// reconstruct it from the bytes pkg/journal persisted, so the journal
// package itself never needs to know about concrete Value types.
package witness

import (
	"fmt"
	"sync"

	"github.com/chemist/builddb/pkg/buildtypes"
)

// Decoder reconstructs a Value from the bytes Value.Encode produced.
type Decoder func(data []byte) (buildtypes.Value, error)

// Registry is a type-tag -> Decoder table. The zero value is not usable;
// construct one with NewRegistry. A *Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry returns a registry with the built-in String, Bytes and
// Phony witnesses pre-registered.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(StringTag, decodeString)
	r.Register(BytesTag, decodeBytes)
	r.Register(PhonyTag, decodePhony)
	return r
}

// Register associates tag with a decoder. Registering the same tag twice
// replaces the previous decoder; this lets a host program override a
// built-in witness with a domain-specific one.
func (r *Registry) Register(tag string, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[tag] = dec
}

// Decode reconstructs the Value encoded under tag. It returns an error if
// no decoder was ever registered for tag — typically a sign that the
// journal holds a record from a rule set the current process no longer
// loads.
func (r *Registry) Decode(tag string, data []byte) (buildtypes.Value, error) {
	r.mu.RLock()
	dec, ok := r.decoders[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("witness: no decoder registered for tag %q", tag)
	}
	return dec(data)
}

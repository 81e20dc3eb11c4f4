package witness

import (
	"bytes"

	"github.com/chemist/builddb/pkg/buildtypes"
)

// StringTag identifies StringValue in the witness registry and journal.
const StringTag = "string"

// StringValue is a Value wrapping a UTF-8 string, suitable for rules
// whose output is a human-readable artifact (a command's stdout, a
// rendered template).
type StringValue string

func (s StringValue) Tag() string { return StringTag }

func (s StringValue) Equal(other buildtypes.Value) bool {
	o, ok := other.(StringValue)
	return ok && o == s
}

func (s StringValue) Encode() ([]byte, error) {
	return []byte(s), nil
}

func decodeString(data []byte) (buildtypes.Value, error) {
	return StringValue(data), nil
}

// BytesTag identifies BytesValue in the witness registry and journal.
const BytesTag = "bytes"

// BytesValue is a Value wrapping an opaque byte slice, the default for
// rules whose output is a content digest or binary artifact.
type BytesValue []byte

func (b BytesValue) Tag() string { return BytesTag }

func (b BytesValue) Equal(other buildtypes.Value) bool {
	o, ok := other.(BytesValue)
	return ok && bytes.Equal(b, o)
}

func (b BytesValue) Encode() ([]byte, error) {
	return append([]byte(nil), b...), nil
}

func decodeBytes(data []byte) (buildtypes.Value, error) {
	return BytesValue(append([]byte(nil), data...)), nil
}

// PhonyTag identifies PhonyValue in the witness registry and journal.
const PhonyTag = "phony"

// PhonyValue wraps the fingerprint of a rule with no durable on-disk
// artifact — a Makefile-style .PHONY target, or one whose only output is
// a side effect. It delegates structural equality to Inner but always
// reports AlwaysRebuilds, since stored() has nothing to re-probe for a
// key like this: Stored reports not-ok every time, not drift.
type PhonyValue struct {
	Inner BytesValue
}

func (p PhonyValue) Tag() string { return PhonyTag }

func (p PhonyValue) Equal(other buildtypes.Value) bool {
	o, ok := other.(PhonyValue)
	return ok && bytes.Equal(p.Inner, o.Inner)
}

func (p PhonyValue) Encode() ([]byte, error) {
	return append([]byte(nil), p.Inner...), nil
}

func (p PhonyValue) AlwaysRebuilds() bool { return true }

func decodePhony(data []byte) (buildtypes.Value, error) {
	return PhonyValue{Inner: append(BytesValue(nil), data...)}, nil
}

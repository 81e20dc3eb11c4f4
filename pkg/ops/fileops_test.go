package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/witness"
)

func noopNeed([]buildtypes.Key) ([]buildtypes.Value, error) {
	return nil, nil
}

func TestStoredMissingFile(t *testing.T) {
	f := NewFileOps(nil)
	_, ok, err := f.Stored(FileKey(filepath.Join(t.TempDir(), "nope.txt")))
	require.NoError(t, err)
	assert.False(t, ok, "expected ok=false for a missing file")
}

func TestExecuteRunsCommandAndHashesOutput(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	f := NewFileOps([]Rule{
		{Target: target, Command: "echo hello > " + target},
	})

	ctx := &ExecContext{Need: func(keys ...buildtypes.Key) ([]buildtypes.Value, error) {
		return noopNeed(keys)
	}}

	value, _, traces, err := f.Execute(ctx, FileKey(target))
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Len(t, traces, 1)

	stored, ok, err := f.Stored(FileKey(target))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.Equal(value), "stored value does not match executed value")
}

func TestExecuteDemandsDeclaredDeps(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	f := NewFileOps([]Rule{
		{Target: target, Deps: []string{"a", "b"}, Command: "true"},
	})

	var needed []string
	ctx := &ExecContext{Need: func(keys ...buildtypes.Key) ([]buildtypes.Value, error) {
		for _, k := range keys {
			needed = append(needed, string(k.Payload))
		}
		return nil, nil
	}}

	_, _, _, err := f.Execute(ctx, FileKey(target))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, needed)
}

func TestExecuteUnknownTarget(t *testing.T) {
	f := NewFileOps(nil)
	ctx := &ExecContext{Need: noopNeed}
	_, _, _, err := f.Execute(ctx, FileKey("missing-rule"))
	assert.Error(t, err)
}

func TestExecuteCommandFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")
	f := NewFileOps([]Rule{
		{Target: target, Command: "exit 1"},
	})
	ctx := &ExecContext{Need: noopNeed}
	_, _, _, err := f.Execute(ctx, FileKey(target))
	assert.Error(t, err, "expected an error from a failing command")
	_, statErr := os.Stat(target)
	assert.Error(t, statErr, "target should not exist after a failing command")
}

func TestPhonyRuleNeverReportsStored(t *testing.T) {
	f := NewFileOps([]Rule{
		{Target: "release", Command: "true", Phony: true},
	})
	_, ok, err := f.Stored(FileKey("release"))
	require.NoError(t, err)
	assert.False(t, ok, "a phony target should never report a stored value")
}

func TestPhonyRuleWrapsValueAsAlwaysRebuilds(t *testing.T) {
	f := NewFileOps([]Rule{
		{Target: "release", Command: "echo done", Phony: true},
	})
	ctx := &ExecContext{Need: noopNeed}

	value, _, _, err := f.Execute(ctx, FileKey("release"))
	require.NoError(t, err)

	special, ok := value.(buildtypes.AlwaysRebuilds)
	require.True(t, ok, "phony target's value should satisfy buildtypes.AlwaysRebuilds")
	assert.True(t, special.AlwaysRebuilds())
	assert.IsType(t, witness.PhonyValue{}, value)
}

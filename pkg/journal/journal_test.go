package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemist/builddb/pkg/buildtypes"
	"github.com/chemist/builddb/pkg/witness"
)

func TestWriteMissingThenReplay(t *testing.T) {
	dir := t.TempDir()
	reg := witness.NewRegistry()
	j, err := Open(dir, reg)
	require.NoError(t, err)
	defer j.Close()

	key := buildtypes.NewKey("file", []byte("a.txt"))
	require.NoError(t, j.WriteMissing(1, key))

	records, step, err := j.Replay()
	require.NoError(t, err)
	assert.Equal(t, buildtypes.Step(0), step)

	rec, ok := records[1]
	require.True(t, ok, "expected record for id 1")
	assert.False(t, rec.Loaded, "expected Loaded=false for a missing record")
	assert.Equal(t, key.String(), rec.Key.String())
}

func TestWriteLoadedThenReplayRoundTripsResult(t *testing.T) {
	dir := t.TempDir()
	reg := witness.NewRegistry()
	j, err := Open(dir, reg)
	require.NoError(t, err)
	defer j.Close()

	key := buildtypes.NewKey("file", []byte("b.txt"))
	result := &buildtypes.Result{
		Value:     witness.StringValue("contents"),
		Built:     3,
		Changed:   2,
		Depends:   []buildtypes.DependencyGroup{{1, 2}, {3}},
		Execution: 150 * time.Millisecond,
		Traces:    []buildtypes.Trace{{Message: "compiling", Start: 0, End: 0.15}},
	}
	require.NoError(t, j.WriteLoaded(5, key, result))
	require.NoError(t, j.WriteStep(7))

	records, step, err := j.Replay()
	require.NoError(t, err)
	assert.Equal(t, buildtypes.Step(7), step)

	rec, ok := records[5]
	require.True(t, ok)
	require.True(t, rec.Loaded)
	assert.True(t, rec.Result.Value.Equal(result.Value))
	assert.Equal(t, buildtypes.Step(3), rec.Result.Built)
	assert.Equal(t, buildtypes.Step(2), rec.Result.Changed)
	require.Len(t, rec.Result.Depends, 2)
	assert.Len(t, rec.Result.Depends[0], 2)
	assert.Equal(t, 150*time.Millisecond, rec.Result.Execution)
	require.Len(t, rec.Result.Traces, 1)
	assert.Equal(t, "compiling", rec.Result.Traces[0].Message)
}

func TestReplayAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	reg := witness.NewRegistry()

	j1, err := Open(dir, reg)
	require.NoError(t, err)
	key := buildtypes.NewKey("file", []byte("c.txt"))
	require.NoError(t, j1.WriteLoaded(9, key, &buildtypes.Result{Value: witness.BytesValue("x")}))
	require.NoError(t, j1.Close())

	j2, err := Open(dir, reg)
	require.NoError(t, err)
	defer j2.Close()
	records, _, err := j2.Replay()
	require.NoError(t, err)
	_, ok := records[9]
	assert.True(t, ok, "expected record for id 9 to survive reopen")
}

package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleRecursionRendersStack(t *testing.T) {
	d := NewRuleRecursion("file(\"a\")", []string{"file(\"a\")", "file(\"b\")"})
	assert.Equal(t, KindRuleRecursion, d.Kind)
	msg := d.Error()
	assert.Contains(t, msg, "depends on itself")
	assert.Contains(t, msg, "stack[0]")
}

func TestRuleExecutionUnwraps(t *testing.T) {
	cause := errors.New("exit status 1")
	d := NewRuleExecution("file(\"out\")", cause)
	assert.True(t, errors.Is(d, cause), "expected errors.Is to find wrapped cause")
	assert.Contains(t, d.Error(), "exit status 1")
}

func TestDatabaseCyclicElidesOverflow(t *testing.T) {
	d := NewDatabaseCyclic([]string{"a", "b"}, 5)
	assert.Contains(t, d.Error(), "5 more key(s)")
}

func TestLintFailureListsMismatches(t *testing.T) {
	d := NewLintFailure([]Mismatch{{Key: "file(\"a\")", Recorded: "1", Stored: "2"}})
	assert.Contains(t, d.Error(), "recorded=1 stored=2")
}

func TestInternalInvariant(t *testing.T) {
	d := NewInternalInvariant("status map entry vanished mid-reduce")
	assert.Equal(t, KindInternalInvariant, d.Kind)
}

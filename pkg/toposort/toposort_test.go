package toposort

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func display(n int) string { return strconv.Itoa(n) }

func indexOf(order []int, n int) int {
	for i, v := range order {
		if v == n {
			return i
		}
	}
	return -1
}

func TestOrderRespectsDependencies(t *testing.T) {
	// 3 depends on 1 and 2; 2 depends on 1.
	deps := map[int][]int{
		1: nil,
		2: {1},
		3: {1, 2},
	}
	order, err := Order(deps, display)
	require.NoError(t, err)
	assert.Len(t, order, 3)
	assert.LessOrEqual(t, indexOf(order, 1), indexOf(order, 2), "1 must precede 2: %v", order)
	assert.LessOrEqual(t, indexOf(order, 2), indexOf(order, 3), "2 must precede 3: %v", order)
}

func TestOrderNoDependencies(t *testing.T) {
	deps := map[int][]int{1: nil, 2: nil, 3: nil}
	order, err := Order(deps, display)
	require.NoError(t, err)
	assert.Len(t, order, 3)
}

func TestOrderDetectsCycle(t *testing.T) {
	deps := map[int][]int{
		1: {2},
		2: {3},
		3: {1},
	}
	_, err := Order(deps, display)
	require.Error(t, err)
	cycleErr, ok := err.(*Error)
	require.True(t, ok, "expected *Error, got %T", err)
	assert.Len(t, cycleErr.Offending, 3, "expected all three nodes reported stuck")
}

func TestOrderCycleWithAcyclicRemainder(t *testing.T) {
	// 4 is fine; 1,2,3 cycle among themselves.
	deps := map[int][]int{
		1: {2},
		2: {3},
		3: {1},
		4: nil,
	}
	_, err := Order(deps, display)
	require.Error(t, err)
	cycleErr := err.(*Error)
	assert.NotContains(t, cycleErr.Offending, "4", "node outside the cycle should not be reported")
}

func TestOrderOverflowTruncatesAtTen(t *testing.T) {
	deps := map[int][]int{}
	for i := 0; i < 15; i++ {
		deps[i] = []int{(i + 1) % 15}
	}
	_, err := Order(deps, display)
	require.Error(t, err)
	cycleErr := err.(*Error)
	assert.Len(t, cycleErr.Offending, maxOffending)
	assert.Equal(t, 5, cycleErr.Overflow)
}

func TestGraphProducesOutput(t *testing.T) {
	deps := map[int][]int{1: nil, 2: {1}}
	out := Graph(deps, display)
	assert.NotEmpty(t, out, "expected non-empty DOT output")
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero(), "NewTimer() start time is zero")
	assert.LessOrEqual(t, time.Since(timer.start), time.Second, "NewTimer() start time is not recent")
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 100 * time.Millisecond
	time.Sleep(sleepDuration)

	duration := timer.Duration()

	assert.GreaterOrEqual(t, duration, sleepDuration)
	assert.Less(t, duration, 2*sleepDuration)
}

// TestTimerObserveDuration tests that observing into a histogram leaves
// the timer running
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(50 * time.Millisecond)

	timer.ObserveDuration(histogram)

	assert.NotZero(t, timer.Duration(), "timer reported zero elapsed time after ObserveDuration()")
}

// TestTimerObserveDurationVec tests that observing into a histogram vec
// leaves the timer running
func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	timer := NewTimer()
	time.Sleep(50 * time.Millisecond)

	timer.ObserveDurationVec(histogramVec, "test_operation")

	assert.NotZero(t, timer.Duration(), "timer reported zero elapsed time after ObserveDurationVec()")
}

// TestTimerMultipleCalls tests that Duration can be called multiple times
func TestTimerMultipleCalls(t *testing.T) {
	timer := NewTimer()

	time.Sleep(50 * time.Millisecond)
	duration1 := timer.Duration()

	time.Sleep(50 * time.Millisecond)
	duration2 := timer.Duration()

	assert.Greater(t, duration2, duration1, "second Duration() call should be longer")
	assert.NotZero(t, duration1)
	assert.NotZero(t, duration2)
}

// TestTimerZeroDuration tests timer with minimal duration
func TestTimerZeroDuration(t *testing.T) {
	timer := NewTimer()

	duration := timer.Duration()

	assert.GreaterOrEqual(t, duration, time.Duration(0))
	assert.Less(t, duration, time.Millisecond)
}

// TestMultipleTimers tests that multiple timers work independently
func TestMultipleTimers(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(50 * time.Millisecond)

	timer2 := NewTimer()
	time.Sleep(50 * time.Millisecond)

	duration1 := timer1.Duration()
	duration2 := timer2.Duration()

	assert.Greater(t, duration1, duration2, "timer1 should be running longer")
	assert.NotZero(t, duration1)
	assert.NotZero(t, duration2)
}

// TestTimerConsistency tests that Duration returns consistent increasing values
func TestTimerConsistency(t *testing.T) {
	timer := NewTimer()

	var lastDuration time.Duration
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		duration := timer.Duration()

		assert.Greater(t, duration, lastDuration, "Duration should be monotonically increasing at iteration %d", i)

		lastDuration = duration
	}
}

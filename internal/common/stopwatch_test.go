package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopwatchLaps(t *testing.T) {
	sw := NewStopwatch()

	time.Sleep(time.Millisecond)
	d1 := sw.Lap("index")
	time.Sleep(time.Millisecond)
	d2 := sw.Lap("probe")

	laps := sw.Laps()
	require.Len(t, laps, 2)
	assert.Equal(t, "index", laps[0].Name)
	assert.Equal(t, "probe", laps[1].Name)
	assert.Equal(t, d1, laps[0].Duration)
	assert.Equal(t, d2, laps[1].Duration)

	assert.Greater(t, d1, time.Duration(0))
	assert.Greater(t, d2, time.Duration(0))
	assert.GreaterOrEqual(t, sw.Total(), d1+d2)
}

func TestStopwatchDurations(t *testing.T) {
	sw := NewStopwatch()
	sw.Lap("a")
	sw.Lap("b")

	durations := sw.Durations()
	require.Len(t, durations, 2)
	assert.Contains(t, durations, "a")
	assert.Contains(t, durations, "b")
}

func TestStopwatchString(t *testing.T) {
	sw := NewStopwatch()
	assert.Contains(t, sw.String(), "total")

	sw.Lap("probe")
	s := sw.String()
	assert.Contains(t, s, "probe: ")
	assert.Contains(t, s, "(total ")
}

func TestReadMemoryStats(t *testing.T) {
	stats := ReadMemoryStats()
	assert.Positive(t, stats.Sys)
	assert.Positive(t, stats.Alloc)
	assert.Contains(t, stats.String(), "Alloc: ")
}

// Package common provides small shared utilities: stage timing for match
// runs and memory statistics for benchmark reports.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Lap is one named stage duration recorded by a Stopwatch.
type Lap struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Stopwatch records named stage durations for a single run. Laps measure
// the time since the previous lap, so consecutive calls partition the run.
// Not safe for concurrent use.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewStopwatch creates a stopwatch running from now.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, last: now}
}

// Lap records the time since the previous lap under name and returns it.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return time.Since(s.start)
}

// Laps returns the recorded laps in order.
func (s *Stopwatch) Laps() []Lap {
	return s.laps
}

// Durations returns the laps keyed by name for structured logging. Later
// laps win on duplicate names.
func (s *Stopwatch) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(s.laps))
	for _, l := range s.laps {
		out[l.Name] = l.Duration
	}
	return out
}

// String formats the laps and total, e.g. "index: 12ms, probe: 80ms (total 92ms)".
func (s *Stopwatch) String() string {
	var b strings.Builder
	for i, l := range s.laps {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", l.Name, l.Duration)
	}
	if b.Len() == 0 {
		return fmt.Sprintf("(total %v)", s.Total())
	}
	fmt.Fprintf(&b, " (total %v)", s.Total())
	return b.String()
}

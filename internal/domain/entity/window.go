package entity

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open interval [Start, End) scoping graph retention
// and analysis. All analytical results are bound to one window.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowOf returns the fixed-width window containing ts, aligned to size.
func WindowOf(ts time.Time, size time.Duration) TimeWindow {
	start := ts.Truncate(size)
	return TimeWindow{Start: start, End: start.Add(size)}
}

// Contains reports whether ts falls inside the window.
func (w TimeWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Key is a stable map key for the window (unix nanos of the start).
func (w TimeWindow) Key() int64 { return w.Start.UnixNano() }

// Duration returns the window width.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

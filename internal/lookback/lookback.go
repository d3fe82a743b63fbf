// Package lookback computes the inclusion cutoff that bounds how far back
// every collector must page through a source's listing.
package lookback

import "time"

// Window is the half-open time range a run considers fresh.
type Window struct {
	Start time.Time
	End   time.Time
}

// Range returns the lookback window for a run anchored at now: from the
// beginning of the previous calendar day (in now's location) up to now.
// Pure and deterministic given now, so tests can inject a fixed clock.
func Range(now time.Time) Window {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{
		Start: todayStart.AddDate(0, 0, -1),
		End:   now,
	}
}

// Contains reports whether t falls inside the window. Items exactly at
// Start are included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Before reports whether t predates the window. Ordered sources stop
// paging at the first such item; unordered sources skip it and keep
// scanning.
func (w Window) Before(t time.Time) bool {
	return t.Before(w.Start)
}

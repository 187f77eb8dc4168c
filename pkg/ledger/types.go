package ledger

import (
	"fmt"
	"time"

	"mailcove/gatekeeper/pkg/config"
)

// Window identifies a calendar-aligned quota window.
type Window string

// Supported window types, from shortest to longest.
const (
	Hourly  Window = "hourly"
	Daily   Window = "daily"
	Monthly Window = "monthly"
)

// windowOrder fixes the evaluation order so rejection reporting is
// deterministic: the shortest failing window wins.
var windowOrder = []Window{Hourly, Daily, Monthly}

// Valid reports whether w is a known window type.
func (w Window) Valid() bool {
	switch w {
	case Hourly, Daily, Monthly:
		return true
	}
	return false
}

// NextBoundary returns the first instant after now at which the window
// rolls over. Boundaries are anchored to UTC regardless of now's
// location.
func (w Window) NextBoundary(now time.Time) time.Time {
	now = now.UTC()
	switch w {
	case Hourly:
		return now.Truncate(time.Hour).Add(time.Hour)
	case Daily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	}
	return now
}

// Limits maps each window a subject is checked against to its limit.
// config.UnlimitedSentinel disables the cap for that window while still
// accumulating usage.
type Limits map[Window]int64

// Windows returns the configured windows in evaluation order.
func (l Limits) Windows() []Window {
	out := make([]Window, 0, len(l))
	for _, w := range windowOrder {
		if _, ok := l[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Decision is the outcome of a CheckAndIncrement call.
//
// When the check is denied, Window names the first window (in hourly,
// daily, monthly order) whose limit would be exceeded and RetryAfter is
// the time until that window resets. When the check is allowed, the
// figures come from the daily window if one was requested, otherwise
// from the first requested window.
type Decision struct {
	Allowed    bool
	Window     Window
	Limit      int64
	Usage      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// WindowStatus is a read-only snapshot of one ledger row.
type WindowStatus struct {
	Limit   int64
	Usage   int64
	ResetAt time.Time
}

func remainingOf(limit, usage int64) int64 {
	if limit == config.UnlimitedSentinel {
		return config.UnlimitedSentinel
	}
	if usage >= limit {
		return 0
	}
	return limit - usage
}

func storageErr(op string, err error) error {
	return fmt.Errorf("ledger %s: %w", op, err)
}

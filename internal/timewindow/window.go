// Package timewindow derives countdown values from an authoritative start
// instant plus duration. All functions are pure; callers own tick scheduling,
// which keeps the session and status-view countdowns consistent and testable.
package timewindow

import (
	"fmt"
	"time"
)

// End is the absolute instant a window closes.
func End(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// Remaining is the time left until the window closes, clamped to zero.
// Recomputing from the absolute end instant every tick means a suspended
// process reconciles against the schedule instead of drifting.
func Remaining(start time.Time, durationMinutes int, now time.Time) time.Duration {
	d := End(start, durationMinutes).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Until is the time left before the window opens, clamped to zero.
func Until(start, now time.Time) time.Duration {
	d := start.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Progress is the elapsed fraction of the window, clamped to [0, 1].
func Progress(start time.Time, durationMinutes int, now time.Time) float64 {
	total := time.Duration(durationMinutes) * time.Minute
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(start)) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// FormatClock renders a duration as HH:MM:SS.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// FormatSpan renders a duration as HH:MM:SS, prefixed with a day count when
// the window is more than a day away.
func FormatSpan(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int64(d / (24 * time.Hour))
	if days == 0 {
		return FormatClock(d)
	}
	return fmt.Sprintf("%dd %s", days, FormatClock(d-time.Duration(days)*24*time.Hour))
}

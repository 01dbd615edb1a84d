package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleWindow is a weekly recurring time range during which live chat is
// open for a class. DayOfWeek follows time.Weekday numbering (Sunday = 0);
// StartTime and EndTime are wall-clock "HH:MM" strings.
type ScheduleWindow struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityResult reports whether chat is currently open. NextWindow is
// empty while available and describes the nearest future window otherwise.
type AvailabilityResult struct {
	Available  bool   `json:"available"`
	NextWindow string `json:"next_window,omitempty"`
}

// Students often send a final question right as class wraps up, so the end
// of each window is extended by a short grace period.
const bufferMinutes = 5

const minutesPerDay = 24 * 60

var dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// parseClock converts "HH:MM" into minutes since midnight. Malformed values
// are reported so callers can skip the window; the write path validates
// times up front, so a skip here only covers rows predating that check.
func parseClock(value string) (int, bool) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) < 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// IsWithinSchedule evaluates the windows against the supplied time. A class
// with no configured windows never blocks chat. Otherwise the class is open
// while "now" falls inside any window on the current weekday (end extended
// by the grace buffer); when closed, the result names the nearest upcoming
// window as "<DayName> HH:MM – HH:MM".
func IsWithinSchedule(windows []ScheduleWindow, now time.Time) AvailabilityResult {
	if len(windows) == 0 {
		return AvailabilityResult{Available: true}
	}

	currentDay := int(now.Weekday())
	currentMinutes := now.Hour()*60 + now.Minute()

	for _, w := range windows {
		if w.DayOfWeek != currentDay {
			continue
		}
		startMin, ok := parseClock(w.StartTime)
		if !ok {
			continue
		}
		endMin, ok := parseClock(w.EndTime)
		if !ok {
			continue
		}
		if currentMinutes >= startMin && currentMinutes <= endMin+bufferMinutes {
			return AvailabilityResult{Available: true}
		}
	}

	next := ""
	minDist := -1
	for _, w := range windows {
		if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			continue
		}
		startMin, ok := parseClock(w.StartTime)
		if !ok {
			continue
		}
		endMin, ok := parseClock(w.EndTime)
		if !ok {
			continue
		}

		dayDiff := (w.DayOfWeek - currentDay + 7) % 7
		if dayDiff == 0 && startMin <= currentMinutes {
			// Today's window already started; next occurrence is next week.
			dayDiff = 7
		}
		dist := dayDiff*minutesPerDay + startMin - currentMinutes
		if minDist < 0 || dist < minDist {
			minDist = dist
			next = fmt.Sprintf("%s %02d:%02d – %02d:%02d",
				dayNames[w.DayOfWeek], startMin/60, startMin%60, endMin/60, endMin%60)
		}
	}

	return AvailabilityResult{Available: false, NextWindow: next}
}

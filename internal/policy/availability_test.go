package policy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-02 is a Monday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC)
}

func TestIsWithinScheduleEmptyWindows(t *testing.T) {
	result := IsWithinSchedule(nil, mondayAt(12, 0))
	assert.True(t, result.Available)
	assert.Empty(t, result.NextWindow)

	result = IsWithinSchedule([]ScheduleWindow{}, mondayAt(3, 33))
	assert.True(t, result.Available)
}

func TestIsWithinScheduleActiveWindow(t *testing.T) {
	windows := []ScheduleWindow{{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"}}

	tests := []struct {
		name      string
		now       time.Time
		available bool
	}{
		{"mid window", mondayAt(9, 30), true},
		{"exact start", mondayAt(9, 0), true},
		{"exact end", mondayAt(10, 15), true},
		{"inside grace buffer", mondayAt(10, 19), true},
		{"buffer boundary", mondayAt(10, 20), true},
		{"past buffer", mondayAt(10, 21), false},
		{"before start", mondayAt(8, 59), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsWithinSchedule(windows, tt.now)
			assert.Equal(t, tt.available, result.Available)
			if tt.available {
				assert.Empty(t, result.NextWindow)
			}
		})
	}
}

func TestIsWithinScheduleNextWindowSameDayNextWeek(t *testing.T) {
	windows := []ScheduleWindow{{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"}}

	// Monday after the window has closed: next occurrence is next Monday.
	result := IsWithinSchedule(windows, mondayAt(10, 21))
	require.False(t, result.Available)
	assert.Equal(t, "Monday 09:00 – 10:15", result.NextWindow)

	// Monday before the window opens: next occurrence is later today.
	result = IsWithinSchedule(windows, mondayAt(7, 0))
	require.False(t, result.Available)
	assert.Equal(t, "Monday 09:00 – 10:15", result.NextWindow)
}

func TestIsWithinScheduleNearestOfSeveral(t *testing.T) {
	windows := []ScheduleWindow{
		{DayOfWeek: 5, StartTime: "14:00", EndTime: "15:30"}, // Friday
		{DayOfWeek: 3, StartTime: "11:00", EndTime: "12:15"}, // Wednesday
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"}, // Monday
	}

	result := IsWithinSchedule(windows, mondayAt(11, 0))
	require.False(t, result.Available)
	assert.Equal(t, "Wednesday 11:00 – 12:15", result.NextWindow)

	// Sunday evening: Monday morning is nearest.
	sunday := time.Date(2026, time.March, 1, 20, 0, 0, 0, time.UTC)
	result = IsWithinSchedule(windows, sunday)
	require.False(t, result.Available)
	assert.Equal(t, "Monday 09:00 – 10:15", result.NextWindow)
}

func TestIsWithinScheduleOverlappingWindows(t *testing.T) {
	windows := []ScheduleWindow{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"},
		{DayOfWeek: 1, StartTime: "09:30", EndTime: "11:00"},
	}
	result := IsWithinSchedule(windows, mondayAt(9, 45))
	assert.True(t, result.Available)
}

func TestIsWithinScheduleSkipsMalformedTimes(t *testing.T) {
	windows := []ScheduleWindow{
		{DayOfWeek: 1, StartTime: "garbage", EndTime: "10:15"},
		{DayOfWeek: 1, StartTime: "25:00", EndTime: "26:00"},
		{DayOfWeek: 3, StartTime: "11:00", EndTime: "12:15"},
	}
	result := IsWithinSchedule(windows, mondayAt(9, 30))
	require.False(t, result.Available)
	assert.Equal(t, "Wednesday 11:00 – 12:15", result.NextWindow)
}

func TestScheduleWindowRoundTrip(t *testing.T) {
	windows := []ScheduleWindow{{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:15"}}
	now := mondayAt(10, 21)
	before := IsWithinSchedule(windows, now)

	raw, err := json.Marshal(windows)
	require.NoError(t, err)
	var decoded []ScheduleWindow
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, before, IsWithinSchedule(decoded, now))
}

func TestIsWithinScheduleSeconds(t *testing.T) {
	// seconds in "HH:MM:SS" database values are tolerated and ignored
	windows := []ScheduleWindow{{DayOfWeek: 1, StartTime: "09:00:00", EndTime: "10:15:00"}}
	result := IsWithinSchedule(windows, mondayAt(9, 30))
	assert.True(t, result.Available)
}

package models

import (
	"time"

	"github.com/evaclass/eva-api/internal/policy"
)

// ClassSchedule is a persisted weekly chat window for a class.
// DayOfWeek uses time.Weekday numbering (Sunday = 0); times are "HH:MM".
type ClassSchedule struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertScheduleRequest is the payload to create or update a chat window.
type UpsertScheduleRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// Window converts the row into the evaluator's value type.
func (s ClassSchedule) Window() policy.ScheduleWindow {
	return policy.ScheduleWindow{
		DayOfWeek: s.DayOfWeek,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}

// Windows maps schedule rows to evaluator windows.
func Windows(schedules []ClassSchedule) []policy.ScheduleWindow {
	windows := make([]policy.ScheduleWindow, 0, len(schedules))
	for _, s := range schedules {
		windows = append(windows, s.Window())
	}
	return windows
}

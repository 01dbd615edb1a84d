package models

import "time"

// Class represents a course section owning chat messages, forum threads
// and schedule windows.
type Class struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CourseCode   string    `db:"course_code" json:"course_code"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	JoinCode     string    `db:"join_code" json:"join_code,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	InstructorID string
	Search       string
	Page         int
	PageSize     int
}

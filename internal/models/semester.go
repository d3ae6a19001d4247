package models

import "time"

// SemesterStatus represents the lifecycle of a semester.
type SemesterStatus string

const (
	SemesterStatusUpcoming  SemesterStatus = "UPCOMING"
	SemesterStatusActive    SemesterStatus = "ACTIVE"
	SemesterStatusCompleted SemesterStatus = "COMPLETED"
)

// Semester bounds every session of the classes offered within it.
type Semester struct {
	ID                string         `db:"id" json:"id"`
	Code              string         `db:"code" json:"code"`
	StartDate         time.Time      `db:"start_date" json:"start_date"`
	EndDate           time.Time      `db:"end_date" json:"end_date"`
	Status            SemesterStatus `db:"status" json:"status"`
	RegistrationStart *time.Time     `db:"registration_start" json:"registration_start,omitempty"`
	RegistrationEnd   *time.Time     `db:"registration_end" json:"registration_end,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Contains reports whether the calendar date falls inside [StartDate, EndDate].
func (s Semester) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(s.StartDate)) && !d.After(DateOnly(s.EndDate))
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

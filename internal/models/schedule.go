package models

import "time"

// ConflictDimension names the resource that collided.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
	ConflictStudent ConflictDimension = "STUDENT"
	ConflictClass   ConflictDimension = "CLASS"
)

// ScheduleConflict describes an existing session that blocks a placement.
type ScheduleConflict struct {
	Dimension       ConflictDimension `json:"dimension"`
	ResourceID      string            `json:"resource_id"`
	SessionID       string            `json:"session_id,omitempty"`
	ClassOfferingID string            `json:"class_offering_id,omitempty"`
	Date            time.Time         `json:"date"`
	TimeSlot        TimeSlot          `json:"time_slot"`
}

// ScheduleConflictError is returned when a placement collides with an existing one.
type ScheduleConflictError struct {
	Type     string             `json:"type"`
	Message  string             `json:"message"`
	Conflict ScheduleConflict   `json:"conflict"`
	Errors   []ScheduleConflict `json:"errors,omitempty"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

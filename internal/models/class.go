package models

import "time"

// ClassOffering is one teacher's section of a subject in a semester.
type ClassOffering struct {
	ID                 string     `db:"id" json:"id"`
	Code               string     `db:"code" json:"code"`
	SubjectID          string     `db:"subject_id" json:"subject_id"`
	TeacherID          string     `db:"teacher_id" json:"teacher_id"`
	SemesterID         string     `db:"semester_id" json:"semester_id"`
	DayOfWeek          DayOfWeek  `db:"day_of_week" json:"day_of_week"`
	TimeSlot           TimeSlot   `db:"time_slot" json:"time_slot"`
	RoomID             *string    `db:"room_id" json:"room_id,omitempty"`
	ELearningDayOfWeek *DayOfWeek `db:"e_learning_day_of_week" json:"e_learning_day_of_week,omitempty"`
	ELearningTimeSlot  *TimeSlot  `db:"e_learning_time_slot" json:"e_learning_time_slot,omitempty"`
	Capacity           int        `db:"capacity" json:"capacity"`
	EnrolledCount      int        `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// RequiredCapacity is the minimum room size the offering needs.
func (c ClassOffering) RequiredCapacity() int {
	if c.EnrolledCount > c.Capacity {
		return c.EnrolledCount
	}
	return c.Capacity
}

package models

import (
	"time"
)

// SessionType distinguishes physical meetings from online coursework.
type SessionType string

const (
	SessionTypeInPerson  SessionType = "IN_PERSON"
	SessionTypeELearning SessionType = "E_LEARNING"
)

// SessionCategory records how a session was placed.
type SessionCategory string

const (
	SessionCategoryFixed     SessionCategory = "FIXED"
	SessionCategoryExtra     SessionCategory = "EXTRA"
	SessionCategoryELearning SessionCategory = "ELEARNING"
)

// SessionStatus is the lifecycle status of a session.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Session is one concrete meeting of a class offering. The original placement
// is never modified by a reschedule; the actual placement overlays it while
// IsRescheduled is true.
type Session struct {
	ID                string          `db:"id" json:"id"`
	ClassOfferingID   string          `db:"class_offering_id" json:"class_offering_id"`
	SemesterID        string          `db:"semester_id" json:"semester_id"`
	SessionNumber     int             `db:"session_number" json:"session_number"`
	SessionType       SessionType     `db:"session_type" json:"session_type"`
	Category          SessionCategory `db:"category" json:"category"`
	OriginalDate      *time.Time      `db:"original_date" json:"original_date,omitempty"`
	OriginalDayOfWeek *DayOfWeek      `db:"original_day_of_week" json:"original_day_of_week,omitempty"`
	OriginalTimeSlot  *TimeSlot       `db:"original_time_slot" json:"original_time_slot,omitempty"`
	OriginalRoomID    *string         `db:"original_room_id" json:"original_room_id,omitempty"`
	ActualDate        *time.Time      `db:"actual_date" json:"actual_date,omitempty"`
	ActualDayOfWeek   *DayOfWeek      `db:"actual_day_of_week" json:"actual_day_of_week,omitempty"`
	ActualTimeSlot    *TimeSlot       `db:"actual_time_slot" json:"actual_time_slot,omitempty"`
	ActualRoomID      *string         `db:"actual_room_id" json:"actual_room_id,omitempty"`
	IsRescheduled     bool            `db:"is_rescheduled" json:"is_rescheduled"`
	IsPending         bool            `db:"is_pending" json:"is_pending"`
	IsForced          bool            `db:"is_forced" json:"is_forced"`
	Status            SessionStatus   `db:"status" json:"status"`
	RescheduleReason  *string         `db:"reschedule_reason" json:"reschedule_reason,omitempty"`
	CancelReason      *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Placement is a concrete date, slot and room.
type Placement struct {
	Date      time.Time `json:"date"`
	DayOfWeek DayOfWeek `json:"day_of_week"`
	TimeSlot  TimeSlot  `json:"time_slot"`
	RoomID    string    `json:"room_id"`
}

// NewPlacement derives the weekday from the date.
func NewPlacement(date time.Time, slot TimeSlot, roomID string) Placement {
	d := DateOnly(date)
	return Placement{Date: d, DayOfWeek: DayOfWeekFromTime(d), TimeSlot: slot, RoomID: roomID}
}

// Original returns the original placement, false while the session is pending.
func (s Session) Original() (Placement, bool) {
	return placementOf(s.OriginalDate, s.OriginalDayOfWeek, s.OriginalTimeSlot, s.OriginalRoomID)
}

// Actual returns the rescheduled placement when one is recorded.
func (s Session) Actual() (Placement, bool) {
	return placementOf(s.ActualDate, s.ActualDayOfWeek, s.ActualTimeSlot, s.ActualRoomID)
}

// EffectiveSchedule is the placement in force: actual when rescheduled, else original.
// Every conflict check and every read must go through it.
func (s Session) EffectiveSchedule() (Placement, bool) {
	if s.IsRescheduled {
		return s.Actual()
	}
	return s.Original()
}

// SetOriginal assigns the original placement and clears the pending flag.
func (s *Session) SetOriginal(p Placement) {
	date := DateOnly(p.Date)
	day := p.DayOfWeek
	slot := p.TimeSlot
	room := p.RoomID
	s.OriginalDate = &date
	s.OriginalDayOfWeek = &day
	s.OriginalTimeSlot = &slot
	s.OriginalRoomID = &room
	s.IsPending = false
	s.Status = SessionStatusScheduled
}

// SetActual overlays a rescheduled placement, keeping the original intact.
func (s *Session) SetActual(p Placement, reason string) {
	date := DateOnly(p.Date)
	day := p.DayOfWeek
	slot := p.TimeSlot
	room := p.RoomID
	s.ActualDate = &date
	s.ActualDayOfWeek = &day
	s.ActualTimeSlot = &slot
	s.ActualRoomID = &room
	s.IsRescheduled = true
	if reason != "" {
		s.RescheduleReason = &reason
	} else {
		s.RescheduleReason = nil
	}
}

// ClearActual drops the rescheduled placement.
func (s *Session) ClearActual() {
	s.ActualDate = nil
	s.ActualDayOfWeek = nil
	s.ActualTimeSlot = nil
	s.ActualRoomID = nil
	s.IsRescheduled = false
	s.RescheduleReason = nil
}

// Occupies reports whether the session holds resources in conflict checks.
func (s Session) Occupies() bool {
	return !s.IsPending && s.Status != SessionStatusCancelled
}

func placementOf(date *time.Time, day *DayOfWeek, slot *TimeSlot, room *string) (Placement, bool) {
	if date == nil || slot == nil {
		return Placement{}, false
	}
	p := Placement{Date: DateOnly(*date), TimeSlot: *slot}
	if day != nil {
		p.DayOfWeek = *day
	} else {
		p.DayOfWeek = DayOfWeekFromTime(*date)
	}
	if room != nil {
		p.RoomID = *room
	}
	return p, true
}

// SessionView is a session joined with the owning offering's teacher and code.
type SessionView struct {
	Session
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	ClassCode string `db:"class_code" json:"class_code"`
}

// SessionFilter captures read-accessor filters.
type SessionFilter struct {
	SemesterID      string
	ClassOfferingID string
	SessionType     SessionType
	Category        SessionCategory
	Status          SessionStatus
	Rescheduled     *bool
	Pending         *bool
}

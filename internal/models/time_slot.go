package models

import (
	"fmt"
	"strings"
	"time"
)

// DayOfWeek is the upper-case weekday name persisted with sessions.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayWeekdays = map[DayOfWeek]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// WorkingDays lists Monday through Saturday.
func WorkingDays() []DayOfWeek {
	return []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
}

// AllDays lists every weekday starting on Monday.
func AllDays() []DayOfWeek {
	return append(WorkingDays(), Sunday)
}

// Weekday converts the name into a time.Weekday.
func (d DayOfWeek) Weekday() (time.Weekday, bool) {
	wd, ok := dayWeekdays[d]
	return wd, ok
}

// Valid reports whether d is a known weekday name.
func (d DayOfWeek) Valid() bool {
	_, ok := dayWeekdays[d]
	return ok
}

// DayOfWeekFromTime returns the weekday name of the given date.
func DayOfWeekFromTime(t time.Time) DayOfWeek {
	for name, wd := range dayWeekdays {
		if wd == t.Weekday() {
			return name
		}
	}
	return Monday
}

// ParseDayOfWeek normalises raw input such as "monday" or " MONDAY ".
func ParseDayOfWeek(raw string) (DayOfWeek, error) {
	day := DayOfWeek(strings.ToUpper(strings.TrimSpace(raw)))
	if !day.Valid() {
		return "", fmt.Errorf("unknown day of week %q", raw)
	}
	return day, nil
}

// TimeSlot identifies one of the fixed daily teaching periods.
type TimeSlot string

const (
	TimeSlotCA1 TimeSlot = "CA1"
	TimeSlotCA2 TimeSlot = "CA2"
	TimeSlotCA3 TimeSlot = "CA3"
	TimeSlotCA4 TimeSlot = "CA4"
	TimeSlotCA5 TimeSlot = "CA5"
)

// TimeSlotWindow is the clock range of a time slot, formatted HH:MM.
type TimeSlotWindow struct {
	Slot  TimeSlot `json:"slot"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

// Slots never overlap and are listed in chronological order.
var timeSlotCatalog = []TimeSlotWindow{
	{Slot: TimeSlotCA1, Start: "07:00", End: "09:30"},
	{Slot: TimeSlotCA2, Start: "09:40", End: "12:10"},
	{Slot: TimeSlotCA3, Start: "12:40", End: "15:10"},
	{Slot: TimeSlotCA4, Start: "15:20", End: "17:50"},
	{Slot: TimeSlotCA5, Start: "18:00", End: "20:30"},
}

// TimeSlots returns every slot in chronological order.
func TimeSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, len(timeSlotCatalog))
	for _, w := range timeSlotCatalog {
		slots = append(slots, w.Slot)
	}
	return slots
}

// TimeSlotCatalog returns the slot windows.
func TimeSlotCatalog() []TimeSlotWindow {
	out := make([]TimeSlotWindow, len(timeSlotCatalog))
	copy(out, timeSlotCatalog)
	return out
}

// Window returns the clock range for the slot.
func (t TimeSlot) Window() (TimeSlotWindow, bool) {
	for _, w := range timeSlotCatalog {
		if w.Slot == t {
			return w, true
		}
	}
	return TimeSlotWindow{}, false
}

// Valid reports whether t is part of the catalog.
func (t TimeSlot) Valid() bool {
	_, ok := t.Window()
	return ok
}

// ParseTimeSlot normalises raw input such as "ca1".
func ParseTimeSlot(raw string) (TimeSlot, error) {
	slot := TimeSlot(strings.ToUpper(strings.TrimSpace(raw)))
	if !slot.Valid() {
		return "", fmt.Errorf("unknown time slot %q", raw)
	}
	return slot, nil
}

// Bounds returns the start and end instants of the slot on the given date.
func (w TimeSlotWindow) Bounds(date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", date.Format("2006-01-02")+" "+w.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", date.Format("2006-01-02")+" "+w.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

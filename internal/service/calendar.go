package service

import (
	"time"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

// DatesForWeekday enumerates, in ascending order, every date of the semester
// falling on the given weekday. Both range ends are inclusive.
func DatesForWeekday(semester models.Semester, day models.DayOfWeek) []time.Time {
	weekday, ok := day.Weekday()
	if !ok {
		return nil
	}
	start := models.DateOnly(semester.StartDate)
	end := models.DateOnly(semester.EndDate)
	if start.After(end) {
		return nil
	}

	offset := (int(weekday) - int(start.Weekday()) + 7) % 7
	var dates []time.Time
	for d := start.AddDate(0, 0, offset); !d.After(end); d = d.AddDate(0, 0, 7) {
		dates = append(dates, d)
	}
	return dates
}

// semesterCalendar caches weekday enumerations for one semester.
type semesterCalendar struct {
	semester models.Semester
	byDay    map[models.DayOfWeek][]time.Time
}

func newSemesterCalendar(semester models.Semester) *semesterCalendar {
	cal := &semesterCalendar{semester: semester, byDay: make(map[models.DayOfWeek][]time.Time, 7)}
	for _, day := range models.AllDays() {
		cal.byDay[day] = DatesForWeekday(semester, day)
	}
	return cal
}

func (c *semesterCalendar) dates(day models.DayOfWeek) []time.Time {
	return c.byDay[day]
}

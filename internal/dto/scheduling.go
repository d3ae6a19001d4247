package dto

import (
	"time"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// SessionResponse is a session with its effective placement resolved.
type SessionResponse struct {
	models.SessionView
	Effective *models.Placement `json:"effective,omitempty"`
}

// NewSessionResponse resolves the effective placement of a session view.
func NewSessionResponse(view models.SessionView) SessionResponse {
	resp := SessionResponse{SessionView: view}
	if p, ok := view.EffectiveSchedule(); ok {
		resp.Effective = &p
	}
	return resp
}

// SessionListQuery captures session list filters from the query string.
type SessionListQuery struct {
	SemesterID      string `form:"semester_id"`
	ClassOfferingID string `form:"class_id"`
	SessionType     string `form:"session_type" validate:"omitempty,oneof=IN_PERSON E_LEARNING"`
	Category        string `form:"category" validate:"omitempty,oneof=FIXED EXTRA ELEARNING"`
	Status          string `form:"status" validate:"omitempty,oneof=SCHEDULED COMPLETED CANCELLED"`
	Rescheduled     *bool  `form:"rescheduled"`
	Pending         *bool  `form:"pending"`
}

// GenerateSessionsResponse summarises the sessions created for a class offering.
type GenerateSessionsResponse struct {
	ClassOfferingID string            `json:"class_offering_id"`
	RoomID          string            `json:"room_id,omitempty"`
	Fixed           int               `json:"fixed"`
	ELearning       int               `json:"e_learning"`
	PendingExtra    int               `json:"pending_extra"`
	Sessions        []SessionResponse `json:"sessions"`
}

// RescheduleRequest moves one session to a new date, slot and room.
type RescheduleRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot  string `json:"time_slot" validate:"required,oneof=CA1 CA2 CA3 CA4 CA5"`
	RoomID    string `json:"room_id" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

// ParsedDate returns the requested date at midnight UTC.
func (r RescheduleRequest) ParsedDate() (time.Time, error) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, err
	}
	return models.DateOnly(d), nil
}

// BatchRescheduleRequest carries several independent reschedules.
type BatchRescheduleRequest struct {
	Items []RescheduleRequest `json:"items" validate:"required,min=1,dive"`
}

// BatchResetRequest lists sessions to restore to their original placement.
type BatchResetRequest struct {
	SessionIDs []string `json:"session_ids" validate:"required,min=1,dive,required"`
}

// BatchFailure describes one item that could not be applied.
type BatchFailure struct {
	SessionID string                    `json:"session_id"`
	Code      string                    `json:"code"`
	Message   string                    `json:"message"`
	Conflicts []models.ScheduleConflict `json:"conflicts,omitempty"`
}

// BatchResult reports per-item outcomes of a batch operation.
type BatchResult struct {
	Succeeded []SessionResponse `json:"succeeded"`
	Failed    []BatchFailure    `json:"failed"`
}

// CancelSessionRequest carries the optional cancellation reason.
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ExtraFailure records an extra session every strategy failed to place.
type ExtraFailure struct {
	ClassOfferingID string `json:"class_offering_id"`
	ClassCode       string `json:"class_code"`
	SessionID       string `json:"session_id"`
	SessionNumber   int    `json:"session_number"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// ExtraScheduleReport summarises one run of the extra session scheduler.
type ExtraScheduleReport struct {
	SemesterID string         `json:"semester_id"`
	Classes    int            `json:"classes"`
	Placed     int            `json:"placed"`
	ByStrategy map[string]int `json:"by_strategy"`
	Forced     int            `json:"forced"`
	Failures   []ExtraFailure `json:"failures"`
}

// SemesterTransitionResponse is returned by semester activation and completion.
type SemesterTransitionResponse struct {
	Semester models.Semester      `json:"semester"`
	Extra    *ExtraScheduleReport `json:"extra,omitempty"`
}

// SweepResult lists the semesters a sweep moved.
type SweepResult struct {
	Activated []string `json:"activated"`
	Completed []string `json:"completed"`
	Failed    []string `json:"failed,omitempty"`
}

// ConflictCheckRequest checks a candidate placement against the semester snapshot.
type ConflictCheckRequest struct {
	SemesterID       string   `json:"semester_id" validate:"required"`
	Date             string   `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot         string   `json:"time_slot" validate:"required,oneof=CA1 CA2 CA3 CA4 CA5"`
	TeacherID        string   `json:"teacher_id"`
	RoomID           string   `json:"room_id"`
	StudentIDs       []string `json:"student_ids"`
	ExcludeSessionID string   `json:"exclude_session_id"`
	ExcludeClassID   string   `json:"exclude_class_id"`
}

// ConflictCheckResponse lists every collision found for the candidate.
type ConflictCheckResponse struct {
	Available bool                      `json:"available"`
	Conflicts []models.ScheduleConflict `json:"conflicts"`
}

// AvailableRoomsQuery filters free rooms at a date and slot.
type AvailableRoomsQuery struct {
	SemesterID  string `form:"semester_id" validate:"required"`
	Date        string `form:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot    string `form:"time_slot" validate:"required,oneof=CA1 CA2 CA3 CA4 CA5"`
	MinCapacity int    `form:"min_capacity" validate:"gte=0"`
}

// RoomUtilization reports how much of a semester a room hosts.
type RoomUtilization struct {
	RoomID        string  `json:"room_id"`
	SemesterID    string  `json:"semester_id"`
	RoomSessions  int     `json:"room_sessions"`
	TotalSessions int     `json:"total_sessions"`
	Percentage    float64 `json:"percentage"`
}

// SchedulerMetricsSnapshot is the JSON view of scheduling counters.
type SchedulerMetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	SessionsPlaced           uint64    `json:"sessions_placed"`
	ForcedAssignments        uint64    `json:"forced_assignments"`
	ExtraFailures            uint64    `json:"extra_failures"`
	Reschedules              uint64    `json:"reschedules"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type generatorMock struct {
	regenerated string
	err         error
}

func (m *generatorMock) CreateFixedSessions(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateSessionsResponse{ClassOfferingID: classID, RoomID: "R101", Fixed: 16, PendingExtra: 4, ELearning: 2}, nil
}

func (m *generatorMock) Regenerate(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error) {
	m.regenerated = classID
	return &dto.GenerateSessionsResponse{ClassOfferingID: classID}, nil
}

type calendarMock struct{}

func (calendarMock) ExportClass(ctx context.Context, classID string) ([]byte, error) {
	if classID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class offering not found")
	}
	return []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), nil
}

func newClassRouter(h *ClassSessionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/class-offerings/:id/sessions", h.Generate)
	router.POST("/class-offerings/:id/sessions/regenerate", h.Regenerate)
	router.GET("/class-offerings/:id/calendar.ics", h.Calendar)
	return router
}

func TestClassSessionGenerate(t *testing.T) {
	router := newClassRouter(&ClassSessionHandler{generator: &generatorMock{}, calendar: calendarMock{}})

	w := perform(router, http.MethodPost, "/class-offerings/class-a/sessions", nil)

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "R101", data["room_id"])
	assert.Equal(t, float64(16), data["fixed"])
}

func TestClassSessionGenerateNoRoom(t *testing.T) {
	generator := &generatorMock{err: appErrors.Clone(appErrors.ErrNoRoomAvailable, "")}
	router := newClassRouter(&ClassSessionHandler{generator: generator, calendar: calendarMock{}})

	w := perform(router, http.MethodPost, "/class-offerings/class-a/sessions", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_ROOM_AVAILABLE", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestClassSessionRegenerateAndCalendar(t *testing.T) {
	generator := &generatorMock{}
	router := newClassRouter(&ClassSessionHandler{generator: generator, calendar: calendarMock{}})

	w := perform(router, http.MethodPost, "/class-offerings/class-a/sessions/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-a", generator.regenerated)

	w = perform(router, http.MethodGet, "/class-offerings/class-a/calendar.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="class-a.ics"`)
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")

	w = perform(router, http.MethodGet, "/class-offerings/missing/calendar.ics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type semesterLifecycleMock struct {
	sweptAt time.Time
}

func (m *semesterLifecycleMock) Get(ctx context.Context, id string) (*models.Semester, error) {
	return &models.Semester{ID: id, Status: models.SemesterStatusUpcoming}, nil
}

func (m *semesterLifecycleMock) Activate(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error) {
	if id == "active" {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "semester cannot move from ACTIVE to ACTIVE")
	}
	return &dto.SemesterTransitionResponse{
		Semester: models.Semester{ID: id, Status: models.SemesterStatusActive},
		Extra:    &dto.ExtraScheduleReport{SemesterID: id, Placed: 3, ByStrategy: map[string]int{"ideal_weekly": 3}},
	}, nil
}

func (m *semesterLifecycleMock) Complete(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error) {
	return &dto.SemesterTransitionResponse{Semester: models.Semester{ID: id, Status: models.SemesterStatusCompleted}}, nil
}

func (m *semesterLifecycleMock) ScheduleExtra(ctx context.Context, id string) (*dto.ExtraScheduleReport, error) {
	return &dto.ExtraScheduleReport{SemesterID: id, ByStrategy: map[string]int{}}, nil
}

func (m *semesterLifecycleMock) SweepDue(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	m.sweptAt = now
	return &dto.SweepResult{Activated: []string{"sem-1"}, Completed: []string{}}, nil
}

func TestSemesterEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &semesterLifecycleMock{}
	fixed := time.Date(2025, 1, 6, 7, 0, 0, 0, time.UTC)
	h := &SemesterHandler{service: svc, now: func() time.Time { return fixed }}
	router := gin.New()
	router.GET("/semesters/:id", h.Get)
	router.POST("/semesters/:id/activate", h.Activate)
	router.POST("/semesters/:id/complete", h.Complete)
	router.POST("/semesters/:id/extra-sessions", h.ScheduleExtra)
	router.POST("/semesters/sweep", h.Sweep)

	w := perform(router, http.MethodPost, "/semesters/sem-1/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	extra := decodeEnvelope(t, w)["data"].(map[string]interface{})["extra"].(map[string]interface{})
	assert.Equal(t, float64(3), extra["placed"])

	w = perform(router, http.MethodPost, "/semesters/active/activate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = perform(router, http.MethodPost, "/semesters/sem-1/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodPost, "/semesters/sem-1/extra-sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodPost, "/semesters/sweep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fixed, svc.sweptAt)

	w = perform(router, http.MethodGet, "/semesters/sem-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UPCOMING", decodeEnvelope(t, w)["data"].(map[string]interface{})["status"])
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type rescheduleFixture struct {
	service  *RescheduleService
	sessions *sessionStoreStub
	rooms    *roomCatalogStub
	metrics  *MetricsService
}

func newRescheduleFixture(t *testing.T, tx txProvider, classes ...models.ClassOffering) rescheduleFixture {
	t.Helper()
	sessions := newSessionStoreStub(classes...)
	metrics := NewMetricsService()
	rooms := &roomCatalogStub{rooms: roomFixtures()}
	svc := NewRescheduleService(
		sessions,
		newSemesterStoreStub(semester2025()),
		newClassStoreStub(classes...),
		rooms,
		tx,
		NewSemesterLocker(),
		nil,
		metrics,
		nil,
		nil,
	)
	return rescheduleFixture{service: svc, sessions: sessions, rooms: rooms, metrics: metrics}
}

func moveTo(d, slot, room string) dto.RescheduleRequest {
	return dto.RescheduleRequest{Date: d, TimeSlot: slot, RoomID: room, Reason: "guest lecture"}
}

func TestRescheduleOverlaysActualPlacement(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 1)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))

	resp, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-08", "CA3", "R202"))
	require.NoError(t, err)
	require.NotNil(t, resp.Effective)
	assert.Equal(t, date(2025, 1, 8), resp.Effective.Date)
	assert.Equal(t, models.Wednesday, resp.Effective.DayOfWeek)

	stored, ok := fx.sessions.byID("s-1")
	require.True(t, ok)
	assert.True(t, stored.IsRescheduled)
	original, _ := stored.Original()
	assert.Equal(t, models.NewPlacement(date(2025, 1, 6), models.TimeSlotCA1, "R101"), original)
	effective, _ := stored.EffectiveSchedule()
	actual, _ := stored.Actual()
	assert.Equal(t, actual, effective)
	assert.Equal(t, models.NewPlacement(date(2025, 1, 8), models.TimeSlotCA3, "R202"), effective)
	require.NotNil(t, stored.RescheduleReason)
	assert.Equal(t, "guest lecture", *stored.RescheduleReason)
	assert.Equal(t, uint64(1), fx.metrics.Snapshot().Reschedules)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleFreesTheOriginalSlot(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 2)
	expectRolledBackTx(mock)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	other := classFixture("class-b", "MA201-01", "teacher-2", 40)
	fx := newRescheduleFixture(t, tx, class, other)
	fx.sessions.seed(
		placedView("a-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
		placedView("b-1", other, 1, date(2025, 1, 7), models.TimeSlotCA1, "R101"),
	)

	_, err := fx.service.Reschedule(context.Background(), "a-1", moveTo("2025-01-08", "CA3", "R101"))
	require.NoError(t, err)

	_, err = fx.service.Reschedule(context.Background(), "b-1", moveTo("2025-01-06", "CA1", "R101"))
	require.NoError(t, err, "original placement of a rescheduled session holds nothing")

	_, err = fx.service.Reschedule(context.Background(), "b-1", moveTo("2025-01-08", "CA3", "R101"))
	require.Error(t, err)
	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictRoom, conflict.Conflict.Dimension)
	assert.Equal(t, "a-1", conflict.Conflict.SessionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleIgnoresItsOwnPlacement(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 1)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))

	_, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-06", "CA1", "R202"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleReportsTeacherConflict(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectRolledBackTx(mock)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	other := classFixture("class-b", "MA201-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class, other)
	fx.sessions.seed(
		placedView("a-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
		placedView("b-1", other, 1, date(2025, 1, 9), models.TimeSlotCA2, onlineRoomID),
	)

	_, err := fx.service.Reschedule(context.Background(), "a-1", moveTo("2025-01-09", "CA2", "R202"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	var conflict *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictTeacher, conflict.Conflict.Dimension)

	stored, _ := fx.sessions.byID("a-1")
	assert.False(t, stored.IsRescheduled)
	assert.Empty(t, fx.sessions.updates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleRejectsInvalidTargets(t *testing.T) {
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	eLearning := placedView("e-1", class, 21, date(2025, 1, 10), models.TimeSlotCA5, onlineRoomID)
	eLearning.SessionType = models.SessionTypeELearning
	eLearning.Category = models.SessionCategoryELearning
	completed := placedView("done-1", class, 2, date(2025, 1, 13), models.TimeSlotCA1, "R101")
	completed.Status = models.SessionStatusCompleted

	cases := []struct {
		name      string
		sessionID string
		req       dto.RescheduleRequest
	}{
		{name: "e-learning", sessionID: "e-1", req: moveTo("2025-01-08", "CA3", "R202")},
		{name: "pending", sessionID: "p-17", req: moveTo("2025-01-08", "CA3", "R202")},
		{name: "completed", sessionID: "done-1", req: moveTo("2025-01-08", "CA3", "R202")},
		{name: "outside semester", sessionID: "s-1", req: moveTo("2025-05-05", "CA3", "R202")},
		{name: "room too small", sessionID: "s-1", req: moveTo("2025-01-08", "CA3", "R303")},
		{name: "inactive room", sessionID: "s-1", req: moveTo("2025-01-08", "CA3", "R999")},
		{name: "unknown room", sessionID: "s-1", req: moveTo("2025-01-08", "CA3", "R000")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx, mock := newSchedulingTx(t)
			expectRolledBackTx(mock)
			fx := newRescheduleFixture(t, tx, class)
			fx.sessions.seed(
				placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
				pendingView("p-17", class, 17),
				eLearning,
				completed,
			)

			_, err := fx.service.Reschedule(context.Background(), tc.sessionID, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation), err.Error())
			assert.Empty(t, fx.sessions.updates)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRescheduleAcceptsOnlineRoomRegardlessOfCapacity(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 1)
	class := classFixture("class-a", "CS101-01", "teacher-1", 120)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R202"))

	resp, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-11", "CA4", onlineRoomID))
	require.NoError(t, err)
	assert.Equal(t, onlineRoomID, resp.Effective.RoomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleValidatesRequestBeforeLoading(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)

	_, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("08/01/2025", "CA3", "R202"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-08", "CA9", "R202"))
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = fx.service.Reschedule(context.Background(), "missing", moveTo("2025-01-08", "CA3", "R202"))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetToOriginalRoundTrip(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 3)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))
	before, _ := fx.sessions.byID("s-1")

	_, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-08", "CA3", "R202"))
	require.NoError(t, err)

	resp, err := fx.service.ResetToOriginal(context.Background(), "s-1")
	require.NoError(t, err)
	after, _ := fx.sessions.byID("s-1")
	assert.False(t, after.IsRescheduled)
	_, hasActual := after.Actual()
	assert.False(t, hasActual)
	assert.Nil(t, after.RescheduleReason)
	beforePlacement, _ := before.EffectiveSchedule()
	afterPlacement, _ := after.EffectiveSchedule()
	assert.Equal(t, beforePlacement, afterPlacement)
	assert.Equal(t, beforePlacement, *resp.Effective)

	updates := len(fx.sessions.updates)
	_, err = fx.service.ResetToOriginal(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Len(t, fx.sessions.updates, updates, "resetting an unmoved session writes nothing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetToOriginalRestoresSlotTakenSinceTheMove(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 3)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	other := classFixture("class-b", "MA201-01", "teacher-2", 40)
	fx := newRescheduleFixture(t, tx, class, other)
	fx.sessions.seed(
		placedView("a-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
		placedView("b-1", other, 1, date(2025, 1, 7), models.TimeSlotCA1, "R101"),
	)

	_, err := fx.service.Reschedule(context.Background(), "a-1", moveTo("2025-01-08", "CA3", "R202"))
	require.NoError(t, err)
	_, err = fx.service.Reschedule(context.Background(), "b-1", moveTo("2025-01-06", "CA1", "R101"))
	require.NoError(t, err)

	resp, err := fx.service.ResetToOriginal(context.Background(), "a-1")
	require.NoError(t, err)
	assert.False(t, resp.IsRescheduled)
	stored, _ := fx.sessions.byID("a-1")
	assert.False(t, stored.IsRescheduled)
	assert.Nil(t, stored.RescheduleReason)
	effective, ok := stored.EffectiveSchedule()
	require.True(t, ok)
	assert.Equal(t, models.NewPlacement(date(2025, 1, 6), models.TimeSlotCA1, "R101"), effective)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleFailsWhenOnlineRoomLookupFails(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("s-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))
	fx.rooms.onlineErr = errors.New("connection reset")

	_, err := fx.service.Reschedule(context.Background(), "s-1", moveTo("2025-01-08", "CA3", "R202"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	stored, _ := fx.sessions.byID("s-1")
	assert.False(t, stored.IsRescheduled)

	_, err = fx.service.ResetToOriginal(context.Background(), "s-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchRescheduleReportsPartialSuccess(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 1)
	expectRolledBackTx(mock)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	other := classFixture("class-b", "MA201-01", "teacher-2", 40)
	fx := newRescheduleFixture(t, tx, class, other)
	fx.sessions.seed(
		placedView("a-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
		placedView("b-1", other, 1, date(2025, 1, 7), models.TimeSlotCA1, "R202"),
	)

	first := moveTo("2025-01-08", "CA3", "R101")
	first.SessionID = "a-1"
	second := moveTo("2025-01-08", "CA3", "R101")
	second.SessionID = "b-1"
	missing := moveTo("2025-01-08", "CA3", "R101")

	result, err := fx.service.BatchReschedule(context.Background(), dto.BatchRescheduleRequest{Items: []dto.RescheduleRequest{first, second, missing}})
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 1)
	assert.Equal(t, "a-1", result.Succeeded[0].ID)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, "b-1", result.Failed[0].SessionID)
	assert.Equal(t, appErrors.ErrConflict.Code, result.Failed[0].Code)
	require.Len(t, result.Failed[0].Conflicts, 1)
	assert.Equal(t, "a-1", result.Failed[0].Conflicts[0].SessionID)
	assert.Equal(t, appErrors.ErrValidation.Code, result.Failed[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchResetContinuesPastFailures(t *testing.T) {
	tx, mock := newSchedulingTx(t)
	expectTx(mock, 2)
	class := classFixture("class-a", "CS101-01", "teacher-1", 40)
	fx := newRescheduleFixture(t, tx, class)
	fx.sessions.seed(placedView("a-1", class, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))

	_, err := fx.service.Reschedule(context.Background(), "a-1", moveTo("2025-01-08", "CA3", "R202"))
	require.NoError(t, err)

	result, err := fx.service.BatchReset(context.Background(), dto.BatchResetRequest{SessionIDs: []string{"missing", "a-1"}})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Failed[0].Code)
	require.Len(t, result.Succeeded, 1)
	assert.False(t, result.Succeeded[0].IsRescheduled)

	_, err = fx.service.BatchReset(context.Background(), dto.BatchResetRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

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

func TestScheduleIndexPredicates(t *testing.T) {
	a := classFixture("class-a", "CS101-01", "teacher-1", 40)
	b := classFixture("class-b", "MA201-01", "teacher-2", 40)
	moved := placedView("a-2", a, 2, date(2025, 1, 13), models.TimeSlotCA1, "R101")
	moved.SetActual(models.NewPlacement(date(2025, 1, 15), models.TimeSlotCA4, "R303"), "")
	cancelled := placedView("b-9", b, 9, date(2025, 1, 6), models.TimeSlotCA2, "R202")
	cancelled.Status = models.SessionStatusCancelled

	idx := newScheduleIndex(onlineRoomID, []models.SessionView{
		placedView("a-1", a, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"),
		placedView("b-1", b, 1, date(2025, 1, 6), models.TimeSlotCA1, onlineRoomID),
		moved,
		cancelled,
		pendingView("a-17", a, 17),
	}, []models.RosterEntry{
		{ClassOfferingID: a.ID, StudentID: "stu-1"},
		{ClassOfferingID: b.ID, StudentID: "stu-2"},
	})

	mon := date(2025, 1, 6)
	require.NotNil(t, idx.TeacherConflict("teacher-1", mon, models.TimeSlotCA1, ""))
	assert.Nil(t, idx.TeacherConflict("teacher-1", mon, models.TimeSlotCA1, "a-1"), "self is excluded")
	assert.Nil(t, idx.TeacherConflict("teacher-1", mon, models.TimeSlotCA2, ""))

	room := idx.RoomConflict("R101", mon, models.TimeSlotCA1, "")
	require.NotNil(t, room)
	assert.Equal(t, "a-1", room.SessionID)
	assert.Nil(t, idx.RoomConflict(onlineRoomID, mon, models.TimeSlotCA1, ""), "the online room never conflicts")
	assert.Nil(t, idx.RoomConflict("R202", mon, models.TimeSlotCA2, ""), "cancelled sessions hold nothing")

	assert.Nil(t, idx.RoomConflict("R101", date(2025, 1, 13), models.TimeSlotCA1, ""), "rescheduled session left its original slot")
	require.NotNil(t, idx.RoomConflict("R303", date(2025, 1, 15), models.TimeSlotCA4, ""))

	student := idx.StudentConflict([]string{"stu-2"}, mon, models.TimeSlotCA1, "")
	require.NotNil(t, student)
	assert.Equal(t, models.ConflictStudent, student.Dimension)
	assert.Equal(t, "b-1", student.SessionID)
	assert.Nil(t, idx.StudentConflict([]string{"stu-2"}, mon, models.TimeSlotCA1, b.ID))
	assert.Nil(t, idx.StudentConflict(nil, mon, models.TimeSlotCA1, ""))

	assert.NotNil(t, idx.ClassConflict(a.ID, mon, models.TimeSlotCA1, ""))
	inRoom, total := idx.roomUsage("R101")
	assert.Equal(t, 1, inRoom)
	assert.Equal(t, 3, total)
}

func TestConflictFailureCarriesEveryConflict(t *testing.T) {
	first := models.ScheduleConflict{Dimension: models.ConflictTeacher, ResourceID: "teacher-1", SessionID: "s-1", Date: date(2025, 1, 6), TimeSlot: models.TimeSlotCA1}
	second := models.ScheduleConflict{Dimension: models.ConflictRoom, ResourceID: "R101", SessionID: "s-2", Date: date(2025, 1, 6), TimeSlot: models.TimeSlotCA1}

	err := conflictFailure(first, second)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	var detail *models.ScheduleConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, "TEACHER", detail.Type)
	assert.Len(t, detail.Errors, 2)
	assert.Contains(t, err.Error(), "2025-01-06")
	assert.Nil(t, conflictFailure())
}

func newConflictService(store *sessionStoreStub, rosters []models.RosterEntry) *ConflictService {
	return NewConflictService(newSemesterStoreStub(semester2025()), &roomCatalogStub{rooms: roomFixtures()}, store, &rosterStoreStub{entries: rosters}, nil, nil)
}

func TestConflictCheckReportsEveryDimension(t *testing.T) {
	a := classFixture("class-a", "CS101-01", "teacher-1", 40)
	b := classFixture("class-b", "MA201-01", "teacher-2", 40)
	store := newSessionStoreStub(a, b)
	store.seed(placedView("a-1", a, 1, date(2025, 1, 6), models.TimeSlotCA1, "R101"))
	rosters := []models.RosterEntry{
		{ClassOfferingID: a.ID, StudentID: "stu-1"},
		{ClassOfferingID: b.ID, StudentID: "stu-1"},
	}
	svc := newConflictService(store, rosters)

	resp, err := svc.Check(context.Background(), dto.ConflictCheckRequest{
		SemesterID:     testSemesterID,
		Date:           "2025-01-06",
		TimeSlot:       "CA1",
		TeacherID:      "teacher-1",
		RoomID:         "R101",
		ExcludeClassID: b.ID,
	})
	require.NoError(t, err)
	assert.False(t, resp.Available)
	require.Len(t, resp.Conflicts, 3)
	assert.Equal(t, models.ConflictTeacher, resp.Conflicts[0].Dimension)
	assert.Equal(t, models.ConflictRoom, resp.Conflicts[1].Dimension)
	assert.Equal(t, models.ConflictStudent, resp.Conflicts[2].Dimension)

	free, err := svc.Check(context.Background(), dto.ConflictCheckRequest{
		SemesterID: testSemesterID,
		Date:       "2025-01-06",
		TimeSlot:   "CA2",
		TeacherID:  "teacher-1",
		RoomID:     "R101",
	})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)
}

func TestConflictCheckFailsWhenOnlineRoomLookupFails(t *testing.T) {
	rooms := &roomCatalogStub{rooms: roomFixtures(), onlineErr: errors.New("connection reset")}
	svc := NewConflictService(newSemesterStoreStub(semester2025()), rooms, newSessionStoreStub(), &rosterStoreStub{}, nil, nil)

	resp, err := svc.Check(context.Background(), dto.ConflictCheckRequest{
		SemesterID: testSemesterID,
		Date:       "2025-01-06",
		TimeSlot:   "CA1",
		TeacherID:  "teacher-1",
		RoomID:     "R101",
	})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestConflictCheckWithoutOnlineRoom(t *testing.T) {
	var physical []models.Room
	for _, room := range roomFixtures() {
		if !room.IsOnline() {
			physical = append(physical, room)
		}
	}
	svc := NewConflictService(newSemesterStoreStub(semester2025()), &roomCatalogStub{rooms: physical}, newSessionStoreStub(), &rosterStoreStub{}, nil, nil)

	resp, err := svc.Check(context.Background(), dto.ConflictCheckRequest{
		SemesterID: testSemesterID,
		Date:       "2025-01-06",
		TimeSlot:   "CA1",
		TeacherID:  "teacher-1",
		RoomID:     "R101",
	})
	require.NoError(t, err)
	assert.True(t, resp.Available)
}

func TestConflictCheckValidation(t *testing.T) {
	svc := newConflictService(newSessionStoreStub(), nil)

	_, err := svc.Check(context.Background(), dto.ConflictCheckRequest{SemesterID: testSemesterID, Date: "2025-01-06", TimeSlot: "CA7"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Check(context.Background(), dto.ConflictCheckRequest{SemesterID: testSemesterID, Date: "2025-06-02", TimeSlot: "CA1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	_, err = svc.Check(context.Background(), dto.ConflictCheckRequest{SemesterID: "missing", Date: "2025-01-06", TimeSlot: "CA1"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

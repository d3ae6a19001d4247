package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type sessionSnapshotReader interface {
	ListCommittedBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error)
}

type slotKey struct {
	date string
	slot models.TimeSlot
}

func keyOf(date time.Time, slot models.TimeSlot) slotKey {
	return slotKey{date: models.DateOnly(date).Format("2006-01-02"), slot: slot}
}

type indexedSession struct {
	id        string
	classID   string
	teacherID string
	roomID    string
	key       slotKey
	date      time.Time
	slot      models.TimeSlot
}

// scheduleIndex is an in-memory snapshot of every placed, non-cancelled session
// of one semester keyed by effective (date, slot). It answers the teacher, room
// and student conflict predicates and is updated as placements are made so
// later decisions in the same run see earlier ones.
type scheduleIndex struct {
	onlineRoomID string
	sessions     map[string]indexedSession
	byKey        map[slotKey][]string
	rosters      map[string][]string
}

func newScheduleIndex(onlineRoomID string, sessions []models.SessionView, rosters []models.RosterEntry) *scheduleIndex {
	idx := &scheduleIndex{
		onlineRoomID: onlineRoomID,
		sessions:     make(map[string]indexedSession, len(sessions)),
		byKey:        make(map[slotKey][]string),
		rosters:      make(map[string][]string),
	}
	for _, entry := range rosters {
		idx.rosters[entry.ClassOfferingID] = append(idx.rosters[entry.ClassOfferingID], entry.StudentID)
	}
	for _, s := range sessions {
		idx.add(s)
	}
	return idx
}

// loadScheduleIndex reads the committed sessions of the semester through exec.
func loadScheduleIndex(ctx context.Context, reader sessionSnapshotReader, exec sqlx.ExtContext, semesterID, onlineRoomID string, rosters []models.RosterEntry) (*scheduleIndex, error) {
	sessions, err := reader.ListCommittedBySemester(ctx, exec, semesterID)
	if err != nil {
		return nil, err
	}
	return newScheduleIndex(onlineRoomID, sessions, rosters), nil
}

// add indexes a session by its effective placement. Pending and cancelled sessions hold nothing.
func (idx *scheduleIndex) add(view models.SessionView) {
	if !view.Occupies() {
		return
	}
	placement, ok := view.EffectiveSchedule()
	if !ok {
		return
	}
	idx.remove(view.ID)
	key := keyOf(placement.Date, placement.TimeSlot)
	idx.sessions[view.ID] = indexedSession{
		id:        view.ID,
		classID:   view.ClassOfferingID,
		teacherID: view.TeacherID,
		roomID:    placement.RoomID,
		key:       key,
		date:      placement.Date,
		slot:      placement.TimeSlot,
	}
	idx.byKey[key] = append(idx.byKey[key], view.ID)
}

func (idx *scheduleIndex) remove(sessionID string) {
	existing, ok := idx.sessions[sessionID]
	if !ok {
		return
	}
	delete(idx.sessions, sessionID)
	ids := idx.byKey[existing.key]
	for i, id := range ids {
		if id == sessionID {
			idx.byKey[existing.key] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

func (idx *scheduleIndex) at(date time.Time, slot models.TimeSlot) []indexedSession {
	ids := idx.byKey[keyOf(date, slot)]
	out := make([]indexedSession, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.sessions[id])
	}
	return out
}

// TeacherConflict returns the first session the teacher already teaches at date and slot.
func (idx *scheduleIndex) TeacherConflict(teacherID string, date time.Time, slot models.TimeSlot, excludeSessionID string) *models.ScheduleConflict {
	if teacherID == "" {
		return nil
	}
	for _, s := range idx.at(date, slot) {
		if s.id != excludeSessionID && s.teacherID == teacherID {
			return conflictOf(models.ConflictTeacher, teacherID, s)
		}
	}
	return nil
}

// RoomConflict returns the session occupying the room. The online room never conflicts.
func (idx *scheduleIndex) RoomConflict(roomID string, date time.Time, slot models.TimeSlot, excludeSessionID string) *models.ScheduleConflict {
	if roomID == "" || roomID == idx.onlineRoomID {
		return nil
	}
	for _, s := range idx.at(date, slot) {
		if s.id != excludeSessionID && s.roomID == roomID {
			return conflictOf(models.ConflictRoom, roomID, s)
		}
	}
	return nil
}

// StudentConflict returns the first session of another class that shares a student.
func (idx *scheduleIndex) StudentConflict(studentIDs []string, date time.Time, slot models.TimeSlot, excludeClassID string) *models.ScheduleConflict {
	if len(studentIDs) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	for _, s := range idx.at(date, slot) {
		if s.classID == excludeClassID {
			continue
		}
		for _, student := range idx.rosters[s.classID] {
			if _, hit := wanted[student]; hit {
				return conflictOf(models.ConflictStudent, student, s)
			}
		}
	}
	return nil
}

// ClassConflict reports whether the class already meets at date and slot.
func (idx *scheduleIndex) ClassConflict(classID string, date time.Time, slot models.TimeSlot, excludeSessionID string) *models.ScheduleConflict {
	for _, s := range idx.at(date, slot) {
		if s.id != excludeSessionID && s.classID == classID {
			return conflictOf(models.ConflictClass, classID, s)
		}
	}
	return nil
}

func (idx *scheduleIndex) roster(classID string) []string {
	return idx.rosters[classID]
}

// roomUsage counts placed sessions in the room and placed sessions overall.
func (idx *scheduleIndex) roomUsage(roomID string) (int, int) {
	var inRoom int
	for _, s := range idx.sessions {
		if s.roomID == roomID {
			inRoom++
		}
	}
	return inRoom, len(idx.sessions)
}

func conflictOf(dimension models.ConflictDimension, resourceID string, s indexedSession) *models.ScheduleConflict {
	return &models.ScheduleConflict{
		Dimension:       dimension,
		ResourceID:      resourceID,
		SessionID:       s.id,
		ClassOfferingID: s.classID,
		Date:            s.date,
		TimeSlot:        s.slot,
	}
}

// conflictFailure wraps one or more collisions into a ConflictFailure.
func conflictFailure(conflicts ...models.ScheduleConflict) error {
	if len(conflicts) == 0 {
		return nil
	}
	first := conflicts[0]
	message := fmt.Sprintf("%s conflict with session %s on %s %s",
		first.Dimension, first.SessionID, first.Date.Format("2006-01-02"), first.TimeSlot)
	detail := &models.ScheduleConflictError{
		Type:     string(first.Dimension),
		Message:  message,
		Conflict: first,
		Errors:   conflicts,
	}
	return appErrors.Wrap(detail, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}

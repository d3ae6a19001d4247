package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type sessionLister interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionView, error)
}

// SessionCalendarService renders the effective schedule of a class as iCalendar.
type SessionCalendarService struct {
	classes  classOfferingReader
	sessions sessionLister
	rooms    roomCatalog
	location *time.Location
	logger   *zap.Logger
}

// NewSessionCalendarService constructs the exporter. Slot clock times are
// interpreted in loc.
func NewSessionCalendarService(classes classOfferingReader, sessions sessionLister, rooms roomCatalog, loc *time.Location, logger *zap.Logger) *SessionCalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionCalendarService{classes: classes, sessions: sessions, rooms: rooms, location: loc, logger: logger}
}

// ExportClass returns an ICS feed with one event per placed, non-cancelled session.
func (s *SessionCalendarService) ExportClass(ctx context.Context, classID string) ([]byte, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class offering not found")
		}
		return nil, appErrors.Internal(err, "failed to load class offering")
	}
	sessions, err := s.sessions.List(ctx, models.SessionFilter{ClassOfferingID: classID})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rooms")
	}
	roomCodes := make(map[string]string, len(rooms))
	for _, room := range rooms {
		roomCodes[room.ID] = room.Code
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//session-scheduler//class sessions//EN")
	cal.SetXWRCalName(class.Code)

	stamp := time.Now().UTC()
	for _, session := range sessions {
		if !session.Occupies() {
			continue
		}
		placement, ok := session.EffectiveSchedule()
		if !ok {
			continue
		}
		window, ok := placement.TimeSlot.Window()
		if !ok {
			continue
		}
		start, end, err := window.Bounds(placement.Date, s.location)
		if err != nil {
			s.logger.Warn("skip session with unparsable slot", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}

		event := cal.AddEvent(session.ID + "@session-scheduler")
		event.SetDtStampTime(stamp)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(fmt.Sprintf("%s #%d (%s)", class.Code, session.SessionNumber, session.SessionType))
		location := roomCodes[placement.RoomID]
		if location == "" {
			location = placement.RoomID
		}
		event.SetLocation(location)
		if session.IsRescheduled && session.RescheduleReason != nil {
			event.SetDescription("Rescheduled: " + *session.RescheduleReason)
		}
	}
	return []byte(cal.Serialize()), nil
}

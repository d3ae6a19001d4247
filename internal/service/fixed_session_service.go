package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type sessionGeneratorStore interface {
	sessionSnapshotReader
	LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error
	CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error
	DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) error
}

type classOfferingReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// FixedSessionService creates the fixed weekly run, the e-learning sessions and
// the pending extra sessions of a class offering in one all-or-nothing step.
type FixedSessionService struct {
	classes   classOfferingReader
	subjects  subjectReader
	semesters semesterReader
	rooms     roomCatalog
	sessions  sessionGeneratorStore
	tx        txProvider
	locker    *SemesterLocker
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewFixedSessionService wires generator dependencies.
func NewFixedSessionService(
	classes classOfferingReader,
	subjects subjectReader,
	semesters semesterReader,
	rooms roomCatalog,
	sessions sessionGeneratorStore,
	tx txProvider,
	locker *SemesterLocker,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *FixedSessionService {
	if locker == nil {
		locker = NewSemesterLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixedSessionService{
		classes:   classes,
		subjects:  subjects,
		semesters: semesters,
		rooms:     rooms,
		sessions:  sessions,
		tx:        tx,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
	}
}

// CreateFixedSessions generates every session of a class offering that has none yet.
func (s *FixedSessionService) CreateFixedSessions(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error) {
	return s.generate(ctx, classID, false)
}

// Regenerate drops every session of the class and builds them again. On
// failure the previous sessions are kept.
func (s *FixedSessionService) Regenerate(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error) {
	return s.generate(ctx, classID, true)
}

func (s *FixedSessionService) generate(ctx context.Context, classID string, replace bool) (*dto.GenerateSessionsResponse, error) {
	class, subject, semester, err := s.loadClassContext(ctx, classID)
	if err != nil {
		return nil, err
	}
	if semester.Status == models.SemesterStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "semester is completed")
	}
	if err := validateOffering(*class, *subject); err != nil {
		return nil, err
	}

	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rooms")
	}
	online, hasOnline := onlineRoomOf(rooms)
	if subject.ELearningSessions > 0 && !hasOnline {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "online room is not configured")
	}

	release := s.locker.Lock(class.SemesterID)
	defer release()

	var plan *sessionPlan
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockSemester(ctx, tx, class.SemesterID); err != nil {
			return appErrors.Internal(err, "failed to lock semester")
		}
		if replace {
			if err := s.sessions.DeleteByClass(ctx, tx, class.ID); err != nil {
				return appErrors.Internal(err, "failed to delete sessions")
			}
		} else {
			count, err := s.sessions.CountByClass(ctx, tx, class.ID)
			if err != nil {
				return appErrors.Internal(err, "failed to count sessions")
			}
			if count > 0 {
				return appErrors.Clone(appErrors.ErrConflict, "sessions already generated for class offering")
			}
		}

		idx, err := loadScheduleIndex(ctx, s.sessions, tx, class.SemesterID, online.ID, nil)
		if err != nil {
			return appErrors.Internal(err, "failed to load sessions")
		}
		plan, err = planClassSessions(*class, *subject, *semester, rooms, online, idx)
		if err != nil {
			return err
		}
		if err := s.sessions.BulkCreate(ctx, tx, plan.sessions); err != nil {
			return appErrors.Internal(err, "failed to create sessions")
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("fixed session generation failed",
			zap.String("class_id", class.ID), zap.String("semester_id", class.SemesterID), zap.Error(err))
		return nil, err
	}

	s.cache.InvalidateSemester(ctx, class.SemesterID)
	s.metrics.RecordPlacement(string(models.SessionCategoryFixed), "weekly", plan.fixed)
	s.metrics.RecordPlacement(string(models.SessionCategoryELearning), "weekly", plan.eLearning)
	s.logger.Info("class sessions generated",
		zap.String("class_id", class.ID),
		zap.String("room_id", plan.roomID),
		zap.Int("fixed", plan.fixed),
		zap.Int("e_learning", plan.eLearning),
		zap.Int("pending_extra", plan.pendingExtra),
		zap.Bool("regenerated", replace),
	)

	resp := &dto.GenerateSessionsResponse{
		ClassOfferingID: class.ID,
		RoomID:          plan.roomID,
		Fixed:           plan.fixed,
		ELearning:       plan.eLearning,
		PendingExtra:    plan.pendingExtra,
		Sessions:        make([]dto.SessionResponse, 0, len(plan.sessions)),
	}
	for _, session := range plan.sessions {
		resp.Sessions = append(resp.Sessions, dto.NewSessionResponse(models.SessionView{Session: session, TeacherID: class.TeacherID, ClassCode: class.Code}))
	}
	return resp, nil
}

func (s *FixedSessionService) loadClassContext(ctx context.Context, classID string) (*models.ClassOffering, *models.Subject, *models.Semester, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class offering not found")
		}
		return nil, nil, nil, appErrors.Internal(err, "failed to load class offering")
	}
	subject, err := s.subjects.FindByID(ctx, class.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, nil, appErrors.Internal(err, "failed to load subject")
	}
	semester, err := s.semesters.FindByID(ctx, class.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, nil, nil, appErrors.Internal(err, "failed to load semester")
	}
	return class, subject, semester, nil
}

func validateOffering(class models.ClassOffering, subject models.Subject) error {
	if !class.DayOfWeek.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "class offering has an invalid day of week")
	}
	if !class.TimeSlot.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "class offering has an invalid time slot")
	}
	if subject.FixedSessions < 0 || subject.InPersonSessions < 0 || subject.ELearningSessions < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "session counts must not be negative")
	}
	if subject.FixedSessions > subject.InPersonSessions {
		return appErrors.Clone(appErrors.ErrValidation, "fixed sessions exceed in-person sessions")
	}
	if subject.ELearningSessions > 0 {
		if class.ELearningDayOfWeek == nil || !class.ELearningDayOfWeek.Valid() ||
			class.ELearningTimeSlot == nil || !class.ELearningTimeSlot.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "e-learning day and time slot are required")
		}
	}
	return nil
}

type sessionPlan struct {
	sessions     []models.Session
	roomID       string
	fixed        int
	eLearning    int
	pendingExtra int
}

// planClassSessions numbers sessions fixed first, then extra, then e-learning.
// Fixed sessions share one room that is free on every date; any conflict
// aborts the whole plan.
func planClassSessions(class models.ClassOffering, subject models.Subject, semester models.Semester, rooms []models.Room, online models.Room, idx *scheduleIndex) (*sessionPlan, error) {
	cal := newSemesterCalendar(semester)
	plan := &sessionPlan{}
	number := 0
	next := func(sessionType models.SessionType, category models.SessionCategory) models.Session {
		number++
		return models.Session{
			ID:              uuid.NewString(),
			ClassOfferingID: class.ID,
			SemesterID:      class.SemesterID,
			SessionNumber:   number,
			SessionType:     sessionType,
			Category:        category,
			Status:          models.SessionStatusScheduled,
		}
	}
	view := func(session models.Session) models.SessionView {
		return models.SessionView{Session: session, TeacherID: class.TeacherID, ClassCode: class.Code}
	}

	if subject.FixedSessions > 0 {
		dates, err := leadingDates(cal, class.DayOfWeek, subject.FixedSessions)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if c := idx.TeacherConflict(class.TeacherID, d, class.TimeSlot, ""); c != nil {
				return nil, conflictFailure(*c)
			}
		}
		room, err := pickFixedRoom(class, rooms, idx, dates)
		if err != nil {
			return nil, err
		}
		plan.roomID = room.ID
		for _, d := range dates {
			session := next(models.SessionTypeInPerson, models.SessionCategoryFixed)
			session.SetOriginal(models.NewPlacement(d, class.TimeSlot, room.ID))
			idx.add(view(session))
			plan.sessions = append(plan.sessions, session)
			plan.fixed++
		}
	}

	for i := 0; i < subject.ExtraSessions(); i++ {
		session := next(models.SessionTypeInPerson, models.SessionCategoryExtra)
		session.IsPending = true
		plan.sessions = append(plan.sessions, session)
		plan.pendingExtra++
	}

	if subject.ELearningSessions > 0 {
		slot := *class.ELearningTimeSlot
		dates, err := leadingDates(cal, *class.ELearningDayOfWeek, subject.ELearningSessions)
		if err != nil {
			return nil, err
		}
		for _, d := range dates {
			if c := idx.TeacherConflict(class.TeacherID, d, slot, ""); c != nil {
				return nil, conflictFailure(*c)
			}
			session := next(models.SessionTypeELearning, models.SessionCategoryELearning)
			session.SetOriginal(models.NewPlacement(d, slot, online.ID))
			idx.add(view(session))
			plan.sessions = append(plan.sessions, session)
			plan.eLearning++
		}
	}
	return plan, nil
}

func leadingDates(cal *semesterCalendar, day models.DayOfWeek, count int) ([]time.Time, error) {
	dates := cal.dates(day)
	if len(dates) < count {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("semester has %d %s dates but %d sessions are required", len(dates), day, count))
	}
	return dates[:count], nil
}

// pickFixedRoom keeps the offering's preferred room when it is free on every
// date and large enough, otherwise takes the smallest room that is.
func pickFixedRoom(class models.ClassOffering, rooms []models.Room, idx *scheduleIndex, dates []time.Time) (models.Room, error) {
	candidates := roomsAvailableForAllDates(rooms, idx, dates, class.TimeSlot, class.RequiredCapacity())
	if len(candidates) == 0 {
		return models.Room{}, appErrors.Clone(appErrors.ErrNoRoomAvailable,
			fmt.Sprintf("no room with %d seats is free on every %s %s", class.RequiredCapacity(), class.DayOfWeek, class.TimeSlot))
	}
	if class.RoomID != nil {
		for _, room := range candidates {
			if room.ID == *class.RoomID {
				return room, nil
			}
		}
	}
	return candidates[0], nil
}

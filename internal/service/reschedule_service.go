package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type sessionMutationStore interface {
	sessionSnapshotReader
	LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SessionView, error)
	Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
}

const (
	rescheduleOutcomeSuccess  = "success"
	rescheduleOutcomeConflict = "conflict"
	rescheduleOutcomeRejected = "rejected"
	rescheduleOutcomeReset    = "reset"
)

// RescheduleService moves sessions away from their original placement and back.
// The original placement is never modified.
type RescheduleService struct {
	sessions  sessionMutationStore
	semesters semesterReader
	classes   classOfferingReader
	rooms     roomCatalog
	tx        txProvider
	locker    *SemesterLocker
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRescheduleService wires rescheduler dependencies.
func NewRescheduleService(
	sessions sessionMutationStore,
	semesters semesterReader,
	classes classOfferingReader,
	rooms roomCatalog,
	tx txProvider,
	locker *SemesterLocker,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *RescheduleService {
	if locker == nil {
		locker = NewSemesterLocker()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleService{
		sessions:  sessions,
		semesters: semesters,
		classes:   classes,
		rooms:     rooms,
		tx:        tx,
		locker:    locker,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Reschedule overlays a new date, slot and room on the session after checking
// teacher and room conflicts against every other placed session.
func (s *RescheduleService) Reschedule(ctx context.Context, sessionID string, req dto.RescheduleRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordReschedule(rescheduleOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	day, err := req.ParsedDate()
	if err != nil {
		s.metrics.RecordReschedule(rescheduleOutcomeRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	target := models.NewPlacement(day, models.TimeSlot(req.TimeSlot), req.RoomID)

	var updated *models.SessionView
	err = s.mutate(ctx, sessionID, func(tx *sqlx.Tx, session *models.SessionView, idx *scheduleIndex) error {
		if err := ensureReschedulable(session.Session); err != nil {
			return err
		}
		semester, err := s.semesters.FindByID(ctx, session.SemesterID)
		if err != nil {
			return appErrors.Internal(err, "failed to load semester")
		}
		if !semester.Contains(day) {
			return appErrors.Clone(appErrors.ErrValidation, "date is outside the semester")
		}
		if err := s.ensureRoomFits(ctx, session.ClassOfferingID, req.RoomID); err != nil {
			return err
		}

		var conflicts []models.ScheduleConflict
		if c := idx.TeacherConflict(session.TeacherID, target.Date, target.TimeSlot, session.ID); c != nil {
			conflicts = append(conflicts, *c)
		}
		if c := idx.RoomConflict(target.RoomID, target.Date, target.TimeSlot, session.ID); c != nil {
			conflicts = append(conflicts, *c)
		}
		if len(conflicts) > 0 {
			return conflictFailure(conflicts...)
		}

		session.SetActual(target, req.Reason)
		if err := s.sessions.Update(ctx, tx, &session.Session); err != nil {
			return appErrors.Internal(err, "failed to update session")
		}
		updated = session
		return nil
	})
	if err != nil {
		s.metrics.RecordReschedule(outcomeOf(err))
		return nil, err
	}

	s.metrics.RecordReschedule(rescheduleOutcomeSuccess)
	s.logger.Info("session rescheduled",
		zap.String("session_id", updated.ID),
		zap.String("class_id", updated.ClassOfferingID),
		zap.Time("date", target.Date),
		zap.String("time_slot", string(target.TimeSlot)),
		zap.String("room_id", target.RoomID),
	)
	resp := dto.NewSessionResponse(*updated)
	return &resp, nil
}

// ResetToOriginal drops the rescheduled placement. The original placement is
// restored as stored, without re-checking it against later moves. Resetting a
// session that was never rescheduled is a no-op.
func (s *RescheduleService) ResetToOriginal(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	var result *models.SessionView
	err := s.mutate(ctx, sessionID, func(tx *sqlx.Tx, session *models.SessionView, _ *scheduleIndex) error {
		if !session.IsRescheduled {
			result = session
			return nil
		}
		if session.Status != models.SessionStatusScheduled {
			return appErrors.Clone(appErrors.ErrValidation, "only scheduled sessions can be reset")
		}
		if _, ok := session.Original(); !ok {
			return appErrors.Clone(appErrors.ErrValidation, "session has no original placement")
		}
		session.ClearActual()
		if err := s.sessions.Update(ctx, tx, &session.Session); err != nil {
			return appErrors.Internal(err, "failed to update session")
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordReschedule(rescheduleOutcomeReset)
	resp := dto.NewSessionResponse(*result)
	return &resp, nil
}

// BatchReschedule applies each item independently and reports per-item failures.
func (s *RescheduleService) BatchReschedule(ctx context.Context, req dto.BatchRescheduleRequest) (*dto.BatchResult, error) {
	if len(req.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "items must not be empty")
	}
	result := &dto.BatchResult{Succeeded: []dto.SessionResponse{}, Failed: []dto.BatchFailure{}}
	for _, item := range req.Items {
		if item.SessionID == "" {
			result.Failed = append(result.Failed, batchFailure("", appErrors.Clone(appErrors.ErrValidation, "session_id is required")))
			continue
		}
		resp, err := s.Reschedule(ctx, item.SessionID, item)
		if err != nil {
			result.Failed = append(result.Failed, batchFailure(item.SessionID, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, *resp)
	}
	return result, nil
}

// BatchReset resets each session independently and reports per-item failures.
func (s *RescheduleService) BatchReset(ctx context.Context, req dto.BatchResetRequest) (*dto.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	result := &dto.BatchResult{Succeeded: []dto.SessionResponse{}, Failed: []dto.BatchFailure{}}
	for _, id := range req.SessionIDs {
		resp, err := s.ResetToOriginal(ctx, id)
		if err != nil {
			result.Failed = append(result.Failed, batchFailure(id, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, *resp)
	}
	return result, nil
}

// mutate loads the session, takes the semester locks and runs fn inside a
// transaction with a fresh snapshot of the semester.
func (s *RescheduleService) mutate(ctx context.Context, sessionID string, fn func(tx *sqlx.Tx, session *models.SessionView, idx *scheduleIndex) error) error {
	current, err := s.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Internal(err, "failed to load session")
	}

	release := s.locker.Lock(current.SemesterID)
	defer release()

	onlineID, err := resolveOnlineRoomID(ctx, s.rooms)
	if err != nil {
		return appErrors.Internal(err, "failed to load online room")
	}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockSemester(ctx, tx, current.SemesterID); err != nil {
			return appErrors.Internal(err, "failed to lock semester")
		}
		session, err := s.sessions.FindByID(ctx, tx, sessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "session not found")
			}
			return appErrors.Internal(err, "failed to load session")
		}
		idx, err := loadScheduleIndex(ctx, s.sessions, tx, session.SemesterID, onlineID, nil)
		if err != nil {
			return appErrors.Internal(err, "failed to load sessions")
		}
		return fn(tx, session, idx)
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateSemester(ctx, current.SemesterID)
	return nil
}

func (s *RescheduleService) ensureRoomFits(ctx context.Context, classID, roomID string) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "room not found")
		}
		return appErrors.Internal(err, "failed to load room")
	}
	if !room.Active {
		return appErrors.Clone(appErrors.ErrValidation, "room is not active")
	}
	if room.IsOnline() {
		return nil
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return appErrors.Internal(err, "failed to load class offering")
	}
	if room.Capacity < class.RequiredCapacity() {
		return appErrors.Clone(appErrors.ErrValidation, "room capacity is below the class requirement")
	}
	return nil
}

func ensureReschedulable(session models.Session) error {
	switch {
	case session.SessionType == models.SessionTypeELearning:
		return appErrors.Clone(appErrors.ErrValidation, "e-learning sessions cannot be rescheduled")
	case session.IsPending:
		return appErrors.Clone(appErrors.ErrValidation, "pending sessions have no placement to move")
	case session.Status != models.SessionStatusScheduled:
		return appErrors.Clone(appErrors.ErrValidation, "only scheduled sessions can be rescheduled")
	}
	return nil
}

func outcomeOf(err error) string {
	if errors.Is(err, appErrors.ErrConflict) {
		return rescheduleOutcomeConflict
	}
	return rescheduleOutcomeRejected
}

func batchFailure(sessionID string, err error) dto.BatchFailure {
	appErr := appErrors.FromError(err)
	failure := dto.BatchFailure{SessionID: sessionID, Code: appErr.Code, Message: appErr.Message}
	var conflict *models.ScheduleConflictError
	if errors.As(err, &conflict) {
		failure.Conflicts = conflict.Errors
	}
	return failure
}

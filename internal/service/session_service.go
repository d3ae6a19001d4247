package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type sessionStateStore interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.SessionView, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SessionView, error)
	LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error
	Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
}

// sessionTransitions lists the statuses reachable from each status.
// COMPLETED and CANCELLED are terminal.
var sessionTransitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionStatusScheduled: {models.SessionStatusCompleted, models.SessionStatusCancelled},
	models.SessionStatusCompleted: nil,
	models.SessionStatusCancelled: nil,
}

func canTransition(from, to models.SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SessionService exposes session reads and status transitions.
type SessionService struct {
	sessions  sessionStateStore
	tx        txProvider
	locker    *SemesterLocker
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewSessionService constructs the service.
func NewSessionService(sessions sessionStateStore, tx txProvider, locker *SemesterLocker, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *SessionService {
	if locker == nil {
		locker = NewSemesterLocker()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, tx: tx, locker: locker, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// List returns sessions matching the query with their effective placement.
// Semester-scoped listings are cached until the next write in that semester.
func (s *SessionService) List(ctx context.Context, query dto.SessionListQuery) ([]dto.SessionResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if query.SemesterID == "" && query.ClassOfferingID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester_id or class_id is required")
	}

	key := ""
	if query.SemesterID != "" {
		key = sessionListCacheKey(query)
		var cached []dto.SessionResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	views, err := s.sessions.List(ctx, models.SessionFilter{
		SemesterID:      query.SemesterID,
		ClassOfferingID: query.ClassOfferingID,
		SessionType:     models.SessionType(query.SessionType),
		Category:        models.SessionCategory(query.Category),
		Status:          models.SessionStatus(query.Status),
		Rescheduled:     query.Rescheduled,
		Pending:         query.Pending,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sessions")
	}

	result := make([]dto.SessionResponse, 0, len(views))
	for _, view := range views {
		result = append(result, dto.NewSessionResponse(view))
	}
	if key != "" {
		_ = s.cache.Set(ctx, key, result, s.cacheTTL)
	}
	return result, nil
}

// Get returns one session with its effective placement.
func (s *SessionService) Get(ctx context.Context, id string) (*dto.SessionResponse, error) {
	view, err := s.sessions.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}
	resp := dto.NewSessionResponse(*view)
	return &resp, nil
}

// MarkCompleted moves a placed session to COMPLETED.
func (s *SessionService) MarkCompleted(ctx context.Context, id string) (*dto.SessionResponse, error) {
	return s.transition(ctx, id, models.SessionStatusCompleted, "")
}

// MarkCancelled moves a session to CANCELLED, releasing its resources.
func (s *SessionService) MarkCancelled(ctx context.Context, id string, req dto.CancelSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return s.transition(ctx, id, models.SessionStatusCancelled, req.Reason)
}

func (s *SessionService) transition(ctx context.Context, id string, to models.SessionStatus, reason string) (*dto.SessionResponse, error) {
	current, err := s.sessions.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}

	release := s.locker.Lock(current.SemesterID)
	defer release()

	var updated *models.SessionView
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.sessions.LockSemester(ctx, tx, current.SemesterID); err != nil {
			return appErrors.Internal(err, "failed to lock semester")
		}
		session, err := s.sessions.FindByID(ctx, tx, id)
		if err != nil {
			return appErrors.Internal(err, "failed to load session")
		}
		if !canTransition(session.Status, to) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("session cannot move from %s to %s", session.Status, to))
		}
		if to == models.SessionStatusCompleted && session.IsPending {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "pending sessions cannot be completed")
		}
		session.Status = to
		if to == models.SessionStatusCancelled && reason != "" {
			session.CancelReason = &reason
		}
		if err := s.sessions.Update(ctx, tx, &session.Session); err != nil {
			return appErrors.Internal(err, "failed to update session")
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateSemester(ctx, current.SemesterID)
	s.logger.Info("session status changed", zap.String("session_id", id), zap.String("status", string(to)))
	resp := dto.NewSessionResponse(*updated)
	return &resp, nil
}

func sessionListCacheKey(q dto.SessionListQuery) string {
	parts := []string{q.ClassOfferingID, q.SessionType, q.Category, q.Status, boolPart(q.Rescheduled), boolPart(q.Pending)}
	return fmt.Sprintf("scheduler:semester:%s:sessions:%s", q.SemesterID, strings.Join(parts, "|"))
}

func boolPart(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return "1"
	}
	return "0"
}

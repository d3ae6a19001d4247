package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

const sessionColumns = `s.id, s.class_offering_id, s.semester_id, s.session_number, s.session_type, s.category,
s.original_date, s.original_day_of_week, s.original_time_slot, s.original_room_id,
s.actual_date, s.actual_day_of_week, s.actual_time_slot, s.actual_room_id,
s.is_rescheduled, s.is_pending, s.is_forced, s.status, s.reschedule_reason, s.cancel_reason, s.created_at, s.updated_at`

const sessionViewSelect = `SELECT ` + sessionColumns + `, c.teacher_id, c.code AS class_code
FROM class_sessions s
JOIN class_offerings c ON c.id = s.class_offering_id`

// SessionRepository persists class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockSemester takes a transaction-scoped advisory lock serialising every
// placement decision inside one semester.
func (r *SessionRepository) LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "semester:"+semesterID); err != nil {
		return fmt.Errorf("lock semester %s: %w", semesterID, err)
	}
	return nil
}

// ListCommittedBySemester returns the snapshot used by conflict checks: every
// placed, non-cancelled session of the semester.
func (r *SessionRepository) ListCommittedBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error) {
	query := sessionViewSelect + ` WHERE s.semester_id = $1 AND s.status <> $2 AND s.is_pending = FALSE ORDER BY c.code ASC, s.session_number ASC`
	var sessions []models.SessionView
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, semesterID, models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list committed sessions: %w", err)
	}
	return sessions, nil
}

// ListPendingExtra returns unplaced EXTRA sessions ordered by class code then session number.
func (r *SessionRepository) ListPendingExtra(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error) {
	query := sessionViewSelect + ` WHERE s.semester_id = $1 AND s.is_pending = TRUE AND s.category = $2 AND s.status <> $3 ORDER BY c.code ASC, s.session_number ASC`
	var sessions []models.SessionView
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, semesterID, models.SessionCategoryExtra, models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list pending extra sessions: %w", err)
	}
	return sessions, nil
}

// FindByID loads a session with its owning offering's teacher.
func (r *SessionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SessionView, error) {
	query := sessionViewSelect + ` WHERE s.id = $1`
	var session models.SessionView
	if err := sqlx.GetContext(ctx, r.exec(exec), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDs loads several sessions in one round trip, ordered by class code and number.
func (r *SessionRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.SessionView, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := sessionViewSelect + ` WHERE s.id = ANY($1) ORDER BY c.code ASC, s.session_number ASC`
	var sessions []models.SessionView
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find sessions by ids: %w", err)
	}
	return sessions, nil
}

// CountByClass returns how many sessions exist for a class offering.
func (r *SessionRepository) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM class_sessions WHERE class_offering_id = $1`, classID); err != nil {
		return 0, fmt.Errorf("count sessions by class: %w", err)
	}
	return count, nil
}

// List returns sessions matching the filter ordered by class code and number.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionView, error) {
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("s.semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.ClassOfferingID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_offering_id = $%d", len(args)+1))
		args = append(args, filter.ClassOfferingID)
	}
	if filter.SessionType != "" {
		conditions = append(conditions, fmt.Sprintf("s.session_type = $%d", len(args)+1))
		args = append(args, filter.SessionType)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("s.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Rescheduled != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_rescheduled = $%d", len(args)+1))
		args = append(args, *filter.Rescheduled)
	}
	if filter.Pending != nil {
		conditions = append(conditions, fmt.Sprintf("s.is_pending = $%d", len(args)+1))
		args = append(args, *filter.Pending)
	}

	query := sessionViewSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.code ASC, s.session_number ASC"

	var sessions []models.SessionView
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// BulkCreate inserts sessions using the provided executor.
func (r *SessionRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	now := time.Now().UTC()
	target := r.exec(exec)
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.Status == "" {
			payload.Status = models.SessionStatusScheduled
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		const query = `INSERT INTO class_sessions (id, class_offering_id, semester_id, session_number, session_type, category,
original_date, original_day_of_week, original_time_slot, original_room_id,
actual_date, actual_day_of_week, actual_time_slot, actual_room_id,
is_rescheduled, is_pending, is_forced, status, reschedule_reason, cancel_reason, created_at, updated_at)
VALUES (:id, :class_offering_id, :semester_id, :session_number, :session_type, :category,
:original_date, :original_day_of_week, :original_time_slot, :original_room_id,
:actual_date, :actual_day_of_week, :actual_time_slot, :actual_room_id,
:is_rescheduled, :is_pending, :is_forced, :status, :reschedule_reason, :cancel_reason, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, target, query, &payload); err != nil {
			return fmt.Errorf("insert session %d: %w", payload.SessionNumber, err)
		}
		sessions[i] = payload
	}
	return nil
}

// Update writes every mutable column of a session.
func (r *SessionRepository) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET
original_date = :original_date, original_day_of_week = :original_day_of_week, original_time_slot = :original_time_slot, original_room_id = :original_room_id,
actual_date = :actual_date, actual_day_of_week = :actual_day_of_week, actual_time_slot = :actual_time_slot, actual_room_id = :actual_room_id,
is_rescheduled = :is_rescheduled, is_pending = :is_pending, is_forced = :is_forced, status = :status,
reschedule_reason = :reschedule_reason, cancel_reason = :cancel_reason, updated_at = :updated_at
WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteByClass removes every session of a class offering.
func (r *SessionRepository) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `DELETE FROM class_sessions WHERE class_offering_id = $1`, classID); err != nil {
		return fmt.Errorf("delete sessions by class: %w", err)
	}
	return nil
}

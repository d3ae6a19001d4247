package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

const semesterColumns = `id, code, start_date, end_date, status, registration_start, registration_end, created_at, updated_at`

// SemesterRepository persists semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

func (r *SemesterRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a semester by identifier.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE id = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, id); err != nil {
		return nil, err
	}
	return &semester, nil
}

// ListByStatus returns semesters in the given status ordered by start date.
func (r *SemesterRepository) ListByStatus(ctx context.Context, status models.SemesterStatus) ([]models.Semester, error) {
	query := `SELECT ` + semesterColumns + ` FROM semesters WHERE status = $1 ORDER BY start_date ASC, code ASC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query, status); err != nil {
		return nil, fmt.Errorf("list semesters by status: %w", err)
	}
	return semesters, nil
}

// UpdateStatus moves a semester to a new status.
func (r *SemesterRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SemesterStatus) error {
	query := `UPDATE semesters SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update semester status: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("update semester status: semester %s not found", id)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

// EnrollmentRepository exposes class rosters.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListRostersBySemester returns every active roster entry of the semester's offerings.
func (r *EnrollmentRepository) ListRostersBySemester(ctx context.Context, semesterID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.class_offering_id, e.student_id FROM enrollments e
JOIN class_offerings c ON c.id = e.class_offering_id
WHERE c.semester_id = $1 AND e.status = $2
ORDER BY e.class_offering_id, e.student_id`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, semesterID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list rosters by semester: %w", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

const classOfferingColumns = `id, code, subject_id, teacher_id, semester_id, day_of_week, time_slot, room_id,
e_learning_day_of_week, e_learning_time_slot, capacity, enrolled_count, created_at, updated_at`

// ClassOfferingRepository reads class offerings.
type ClassOfferingRepository struct {
	db *sqlx.DB
}

// NewClassOfferingRepository constructs the repository.
func NewClassOfferingRepository(db *sqlx.DB) *ClassOfferingRepository {
	return &ClassOfferingRepository{db: db}
}

// FindByID returns a class offering by identifier.
func (r *ClassOfferingRepository) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	query := `SELECT ` + classOfferingColumns + ` FROM class_offerings WHERE id = $1`
	var class models.ClassOffering
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListBySemester returns the offerings of a semester ordered by class code.
func (r *ClassOfferingRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.ClassOffering, error) {
	query := `SELECT ` + classOfferingColumns + ` FROM class_offerings WHERE semester_id = $1 ORDER BY code ASC`
	var classes []models.ClassOffering
	if err := r.db.SelectContext(ctx, &classes, query, semesterID); err != nil {
		return nil, fmt.Errorf("list class offerings: %w", err)
	}
	return classes, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
)

const roomColumns = `id, code, capacity, type, active, created_at, updated_at`

// RoomRepository reads the room catalog.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListActive returns every active room ordered by ascending capacity then code.
func (r *RoomRepository) ListActive(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE active = TRUE ORDER BY capacity ASC, code ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return rooms, nil
}

// FindByID returns a room by identifier.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindOnline returns the singleton virtual room.
func (r *RoomRepository) FindOnline(ctx context.Context) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE type = $1 LIMIT 1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, models.RoomTypeOnline); err != nil {
		return nil, err
	}
	return &room, nil
}

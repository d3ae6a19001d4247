package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type roomCatalog interface {
	ListActive(ctx context.Context) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	FindOnline(ctx context.Context) (*models.Room, error)
}

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

// RoomService answers room availability and utilization queries.
type RoomService struct {
	rooms     roomCatalog
	semesters semesterReader
	sessions  sessionSnapshotReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewRoomService constructs the service.
func NewRoomService(rooms roomCatalog, semesters semesterReader, sessions sessionSnapshotReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{rooms: rooms, semesters: semesters, sessions: sessions, cache: cache, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// OnlineRoom returns the singleton virtual room.
func (s *RoomService) OnlineRoom(ctx context.Context) (*models.Room, error) {
	room, err := s.rooms.FindOnline(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "online room is not configured")
		}
		return nil, appErrors.Internal(err, "failed to load online room")
	}
	return room, nil
}

// resolveOnlineRoomID resolves the ONLINE room id. An empty id means none is configured.
func resolveOnlineRoomID(ctx context.Context, rooms roomCatalog) (string, error) {
	online, err := rooms.FindOnline(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return online.ID, nil
}

// FindAvailableRooms lists physical rooms free at date and slot with enough seats.
func (s *RoomService) FindAvailableRooms(ctx context.Context, query dto.AvailableRoomsQuery) ([]models.Room, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	day, err := time.Parse(dto.DateLayout, query.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	idx, rooms, err := s.snapshot(ctx, query.SemesterID)
	if err != nil {
		return nil, err
	}
	result := availableRooms(rooms, idx, day, models.TimeSlot(query.TimeSlot), query.MinCapacity, "")
	if result == nil {
		result = []models.Room{}
	}
	return result, nil
}

// FindRoomsAvailableForAllDates lists rooms free at the slot on every date.
func (s *RoomService) FindRoomsAvailableForAllDates(ctx context.Context, semesterID string, dates []time.Time, slot models.TimeSlot, minCapacity int) ([]models.Room, error) {
	if !slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown time slot")
	}
	idx, rooms, err := s.snapshot(ctx, semesterID)
	if err != nil {
		return nil, err
	}
	return roomsAvailableForAllDates(rooms, idx, dates, slot, minCapacity), nil
}

// Utilization is the share of the semester's placed sessions hosted by the room.
func (s *RoomService) Utilization(ctx context.Context, roomID, semesterID string) (*dto.RoomUtilization, error) {
	key := utilizationCacheKey(semesterID, roomID)
	var cached dto.RoomUtilization
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Internal(err, "failed to load room")
	}
	idx, _, err := s.snapshot(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	inRoom, total := idx.roomUsage(roomID)
	result := &dto.RoomUtilization{RoomID: roomID, SemesterID: semesterID, RoomSessions: inRoom, TotalSessions: total}
	if total > 0 {
		result.Percentage = math.Round(float64(inRoom)/float64(total)*10000) / 100
	}
	_ = s.cache.Set(ctx, key, result, s.cacheTTL)
	return result, nil
}

func (s *RoomService) snapshot(ctx context.Context, semesterID string) (*scheduleIndex, []models.Room, error) {
	if _, err := s.semesters.FindByID(ctx, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load semester")
	}
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load rooms")
	}
	online, _ := onlineRoomOf(rooms)
	idx, err := loadScheduleIndex(ctx, s.sessions, nil, semesterID, online.ID, nil)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load sessions")
	}
	return idx, rooms, nil
}

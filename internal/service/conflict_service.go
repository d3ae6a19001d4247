package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type rosterReader interface {
	ListRostersBySemester(ctx context.Context, semesterID string) ([]models.RosterEntry, error)
}

// ConflictService evaluates the three conflict predicates for an arbitrary candidate.
type ConflictService struct {
	semesters semesterReader
	rooms     roomCatalog
	sessions  sessionSnapshotReader
	rosters   rosterReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConflictService constructs the service.
func NewConflictService(semesters semesterReader, rooms roomCatalog, sessions sessionSnapshotReader, rosters rosterReader, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{semesters: semesters, rooms: rooms, sessions: sessions, rosters: rosters, validator: validate, logger: logger}
}

// Check reports every teacher, room and student collision for the candidate.
// When ExcludeClassID is set and StudentIDs is empty the class roster is used.
func (s *ConflictService) Check(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictCheckResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	day, err := time.Parse(dto.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD")
	}
	slot := models.TimeSlot(req.TimeSlot)

	semester, err := s.semesters.FindByID(ctx, req.SemesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	if !semester.Contains(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is outside the semester")
	}

	onlineID, err := resolveOnlineRoomID(ctx, s.rooms)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load online room")
	}
	rosters, err := s.rosters.ListRostersBySemester(ctx, req.SemesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rosters")
	}
	idx, err := loadScheduleIndex(ctx, s.sessions, nil, req.SemesterID, onlineID, rosters)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load sessions")
	}

	students := req.StudentIDs
	if len(students) == 0 && req.ExcludeClassID != "" {
		students = idx.roster(req.ExcludeClassID)
	}

	var conflicts []models.ScheduleConflict
	if c := idx.TeacherConflict(req.TeacherID, day, slot, req.ExcludeSessionID); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := idx.RoomConflict(req.RoomID, day, slot, req.ExcludeSessionID); c != nil {
		conflicts = append(conflicts, *c)
	}
	if c := idx.StudentConflict(students, day, slot, req.ExcludeClassID); c != nil {
		conflicts = append(conflicts, *c)
	}
	if conflicts == nil {
		conflicts = []models.ScheduleConflict{}
	}
	return &dto.ConflictCheckResponse{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

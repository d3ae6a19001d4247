package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type extraSessionStore interface {
	sessionSnapshotReader
	LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error
	ListPendingExtra(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error)
	Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error
}

type classOfferingLister interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.ClassOffering, error)
}

// ExtraSessionConfig tunes the extra session scheduler.
type ExtraSessionConfig struct {
	// ForcedSeed seeds the forced strategy; zero seeds from the clock on every run.
	ForcedSeed int64
}

// ExtraSessionService places pending extra sessions through the strategy chain.
type ExtraSessionService struct {
	semesters  semesterReader
	classes    classOfferingLister
	subjects   subjectReader
	rooms      roomCatalog
	rosters    rosterReader
	sessions   extraSessionStore
	tx         txProvider
	locker     *SemesterLocker
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	strategies []extraStrategy
	seed       int64
}

// NewExtraSessionService wires scheduler dependencies.
func NewExtraSessionService(
	semesters semesterReader,
	classes classOfferingLister,
	subjects subjectReader,
	rooms roomCatalog,
	rosters rosterReader,
	sessions extraSessionStore,
	tx txProvider,
	locker *SemesterLocker,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ExtraSessionConfig,
) *ExtraSessionService {
	if locker == nil {
		locker = NewSemesterLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtraSessionService{
		semesters:  semesters,
		classes:    classes,
		subjects:   subjects,
		rooms:      rooms,
		rosters:    rosters,
		sessions:   sessions,
		tx:         tx,
		locker:     locker,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		strategies: extraStrategies,
		seed:       cfg.ForcedSeed,
	}
}

// extraRequest is one pending session with everything the strategies need.
type extraRequest struct {
	session    models.SessionView
	class      models.ClassOffering
	fixedCount int
	roster     []string
}

// placementContext is the shared state of one class's placement pass.
type placementContext struct {
	idx    *scheduleIndex
	cal    *semesterCalendar
	rooms  []models.Room
	online *models.Room
	rng    *rand.Rand
}

type extraStrategy struct {
	name   string
	forced bool
	place  func(pc *placementContext, req extraRequest) (models.Placement, bool)
}

// extraStrategies is tried in order; the first placement wins.
var extraStrategies = []extraStrategy{
	{name: "ideal_weekly", place: placeIdealWeekly},
	{name: "sunday_online", place: placeSundayOnline},
	{name: "any_day_online", place: placeAnyDayOnline},
	{name: "forced_online", forced: true, place: placeForcedOnline},
}

type extraOutcome struct {
	session  models.Session
	strategy string
	forced   bool
}

// ScheduleExtraSessions places every pending extra session of the semester.
// Classes are processed in class code order, each in its own transaction, and
// every placement is visible to the decisions that follow it. A class whose
// sessions cannot all be placed does not stop the others.
func (s *ExtraSessionService) ScheduleExtraSessions(ctx context.Context, semesterID string) (*dto.ExtraScheduleReport, error) {
	semester, err := s.semesters.FindByID(ctx, semesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}

	release := s.locker.Lock(semesterID)
	defer release()

	classes, err := s.classes.ListBySemester(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load class offerings")
	}
	pending, err := s.sessions.ListPendingExtra(ctx, nil, semesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load pending sessions")
	}
	rooms, err := s.rooms.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rooms")
	}
	rosters, err := s.rosters.ListRostersBySemester(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load rosters")
	}

	byClass := make(map[string][]models.SessionView)
	for _, session := range pending {
		byClass[session.ClassOfferingID] = append(byClass[session.ClassOfferingID], session)
	}

	pc := &placementContext{
		cal:   newSemesterCalendar(*semester),
		rooms: rooms,
		rng:   rand.New(rand.NewSource(s.runSeed())),
	}
	if online, ok := onlineRoomOf(rooms); ok {
		pc.online = &online
	}
	onlineID := ""
	if pc.online != nil {
		onlineID = pc.online.ID
	}

	report := &dto.ExtraScheduleReport{SemesterID: semesterID, ByStrategy: map[string]int{}, Failures: []dto.ExtraFailure{}}
	subjects := make(map[string]*models.Subject)

	for _, class := range classes {
		items := byClass[class.ID]
		if len(items) == 0 {
			continue
		}
		report.Classes++

		subject, err := s.subjectFor(ctx, subjects, class.SubjectID)
		if err != nil {
			s.recordClassFailure(report, class, items, appErrors.Internal(err, "failed to load subject"))
			continue
		}

		var outcomes []extraOutcome
		var exhausted []models.SessionView
		err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			outcomes, exhausted = nil, nil
			if err := s.sessions.LockSemester(ctx, tx, semesterID); err != nil {
				return err
			}
			idx, err := loadScheduleIndex(ctx, s.sessions, tx, semesterID, onlineID, rosters)
			if err != nil {
				return err
			}
			pc.idx = idx
			for _, item := range items {
				req := extraRequest{session: item, class: class, fixedCount: subject.FixedSessions, roster: idx.roster(class.ID)}
				outcome, ok := s.placeOne(pc, req)
				if !ok {
					exhausted = append(exhausted, item)
					continue
				}
				if err := s.sessions.Update(ctx, tx, &outcome.session); err != nil {
					return err
				}
				idx.add(models.SessionView{Session: outcome.session, TeacherID: class.TeacherID, ClassCode: class.Code})
				outcomes = append(outcomes, outcome)
			}
			return nil
		})
		if err != nil {
			s.recordClassFailure(report, class, items, appErrors.Internal(err, "failed to persist extra sessions"))
			continue
		}

		for _, outcome := range outcomes {
			report.Placed++
			report.ByStrategy[outcome.strategy]++
			s.metrics.RecordPlacement(string(models.SessionCategoryExtra), outcome.strategy, 1)
			if outcome.forced {
				report.Forced++
				s.metrics.RecordForcedAssignment()
				placement, _ := outcome.session.Original()
				s.logger.Warn("forced_assignment",
					zap.String("semester_id", semesterID),
					zap.String("class_id", class.ID),
					zap.String("session_id", outcome.session.ID),
					zap.Int("session_number", outcome.session.SessionNumber),
					zap.Time("date", placement.Date),
					zap.String("time_slot", string(placement.TimeSlot)),
				)
			}
		}
		for _, item := range exhausted {
			s.metrics.RecordExtraFailure()
			report.Failures = append(report.Failures, dto.ExtraFailure{
				ClassOfferingID: class.ID,
				ClassCode:       class.Code,
				SessionID:       item.ID,
				SessionNumber:   item.SessionNumber,
				Code:            appErrors.ErrSchedulingExhausted.Code,
				Message:         fmt.Sprintf("session %d of %s: %s", item.SessionNumber, class.Code, appErrors.ErrSchedulingExhausted.Message),
			})
		}
	}

	if report.Placed > 0 {
		s.cache.InvalidateSemester(ctx, semesterID)
	}
	s.logger.Info("extra sessions scheduled",
		zap.String("semester_id", semesterID),
		zap.Int("classes", report.Classes),
		zap.Int("placed", report.Placed),
		zap.Int("forced", report.Forced),
		zap.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func (s *ExtraSessionService) placeOne(pc *placementContext, req extraRequest) (extraOutcome, bool) {
	for _, strategy := range s.strategies {
		placement, ok := strategy.place(pc, req)
		if !ok {
			continue
		}
		session := req.session.Session
		session.SetOriginal(placement)
		session.IsForced = strategy.forced
		return extraOutcome{session: session, strategy: strategy.name, forced: strategy.forced}, true
	}
	return extraOutcome{}, false
}

func (s *ExtraSessionService) recordClassFailure(report *dto.ExtraScheduleReport, class models.ClassOffering, items []models.SessionView, err *appErrors.Error) {
	s.logger.Error("extra session scheduling failed for class",
		zap.String("class_id", class.ID), zap.String("class_code", class.Code), zap.Error(err))
	for _, item := range items {
		s.metrics.RecordExtraFailure()
		report.Failures = append(report.Failures, dto.ExtraFailure{
			ClassOfferingID: class.ID,
			ClassCode:       class.Code,
			SessionID:       item.ID,
			SessionNumber:   item.SessionNumber,
			Code:            err.Code,
			Message:         err.Error(),
		})
	}
}

func (s *ExtraSessionService) subjectFor(ctx context.Context, cache map[string]*models.Subject, id string) (*models.Subject, error) {
	if subject, ok := cache[id]; ok {
		return subject, nil
	}
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = subject
	return subject, nil
}

func (s *ExtraSessionService) runSeed() int64 {
	if s.seed != 0 {
		return s.seed
	}
	return time.Now().UnixNano()
}

// placeIdealWeekly looks for a physical room on a working day other than the
// fixed day. The fixed slot is tried only after every other slot of every
// week has failed.
func placeIdealWeekly(pc *placementContext, req extraRequest) (models.Placement, bool) {
	var days []models.DayOfWeek
	for _, day := range models.WorkingDays() {
		if day != req.class.DayOfWeek {
			days = append(days, day)
		}
	}
	return searchFixedSlotLast(pc.cal, days, staggerStart(req), req.class.TimeSlot, func(d time.Time, slot models.TimeSlot) (string, bool) {
		if !cohortFree(pc.idx, req, d, slot) {
			return "", false
		}
		rooms := availableRooms(pc.rooms, pc.idx, d, slot, req.class.RequiredCapacity(), "")
		if len(rooms) == 0 {
			return "", false
		}
		return rooms[0].ID, true
	})
}

// placeSundayOnline moves the session online on a Sunday.
func placeSundayOnline(pc *placementContext, req extraRequest) (models.Placement, bool) {
	if pc.online == nil {
		return models.Placement{}, false
	}
	return searchFixedSlotLast(pc.cal, []models.DayOfWeek{models.Sunday}, staggerStart(req), req.class.TimeSlot, func(d time.Time, slot models.TimeSlot) (string, bool) {
		return pc.online.ID, cohortFree(pc.idx, req, d, slot)
	})
}

// placeAnyDayOnline moves the session online on any day of the week.
func placeAnyDayOnline(pc *placementContext, req extraRequest) (models.Placement, bool) {
	if pc.online == nil {
		return models.Placement{}, false
	}
	return searchFixedSlotLast(pc.cal, models.AllDays(), staggerStart(req), req.class.TimeSlot, func(d time.Time, slot models.TimeSlot) (string, bool) {
		return pc.online.ID, cohortFree(pc.idx, req, d, slot)
	})
}

// placeForcedOnline picks a day other than the fixed day, a date from the
// middle or later weeks and a slot other than the fixed one, with no conflict
// checks at all. It fails only when no such date exists.
func placeForcedOnline(pc *placementContext, req extraRequest) (models.Placement, bool) {
	if pc.online == nil {
		return models.Placement{}, false
	}
	var days []models.DayOfWeek
	for _, day := range models.AllDays() {
		if day != req.class.DayOfWeek && len(pc.cal.dates(day)) > 0 {
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return models.Placement{}, false
	}
	slots := nonFixedSlots(req.class.TimeSlot)

	day := days[pc.rng.Intn(len(days))]
	dates := pc.cal.dates(day)
	low := len(dates) / 3
	week := low + pc.rng.Intn(len(dates)-low)
	slot := slots[pc.rng.Intn(len(slots))]
	return models.NewPlacement(dates[week], slot, pc.online.ID), true
}

// cohortFree checks the class itself, its teacher and its roster.
func cohortFree(idx *scheduleIndex, req extraRequest, d time.Time, slot models.TimeSlot) bool {
	return idx.ClassConflict(req.class.ID, d, slot, "") == nil &&
		idx.TeacherConflict(req.class.TeacherID, d, slot, "") == nil &&
		idx.StudentConflict(req.roster, d, slot, req.class.ID) == nil
}

// staggerStart spreads consecutive extra sessions over different weeks.
func staggerStart(req extraRequest) int {
	return req.session.SessionNumber - req.fixedCount
}

// nonFixedSlots lists every slot except the fixed one.
func nonFixedSlots(fixed models.TimeSlot) []models.TimeSlot {
	slots := make([]models.TimeSlot, 0, len(models.TimeSlots()))
	for _, slot := range models.TimeSlots() {
		if slot != fixed {
			slots = append(slots, slot)
		}
	}
	return slots
}

// searchFixedSlotLast runs a full week-major search over the non-fixed slots
// and only then a second one restricted to the fixed slot.
func searchFixedSlotLast(cal *semesterCalendar, days []models.DayOfWeek, startWeek int, fixed models.TimeSlot, accept func(time.Time, models.TimeSlot) (string, bool)) (models.Placement, bool) {
	if p, ok := searchWeekMajor(cal, days, startWeek, nonFixedSlots(fixed), accept); ok {
		return p, true
	}
	if !fixed.Valid() {
		return models.Placement{}, false
	}
	return searchWeekMajor(cal, days, startWeek, []models.TimeSlot{fixed}, accept)
}

// searchWeekMajor walks weeks starting at startWeek (wrapping), then days, then
// slots, and returns the first candidate accept approves.
func searchWeekMajor(cal *semesterCalendar, days []models.DayOfWeek, startWeek int, slots []models.TimeSlot, accept func(time.Time, models.TimeSlot) (string, bool)) (models.Placement, bool) {
	weeks := 0
	for _, day := range days {
		if n := len(cal.dates(day)); n > weeks {
			weeks = n
		}
	}
	if weeks == 0 {
		return models.Placement{}, false
	}
	start := ((startWeek % weeks) + weeks) % weeks
	for i := 0; i < weeks; i++ {
		w := (start + i) % weeks
		for _, day := range days {
			dates := cal.dates(day)
			if w >= len(dates) {
				continue
			}
			for _, slot := range slots {
				if roomID, ok := accept(dates[w], slot); ok {
					return models.NewPlacement(dates[w], slot, roomID), true
				}
			}
		}
	}
	return models.Placement{}, false
}

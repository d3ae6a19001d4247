package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
	"github.com/noah-isme/sma-session-scheduler/pkg/jobs"
)

type semesterStore interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	ListByStatus(ctx context.Context, status models.SemesterStatus) ([]models.Semester, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SemesterStatus) error
}

type extraScheduler interface {
	ScheduleExtraSessions(ctx context.Context, semesterID string) (*dto.ExtraScheduleReport, error)
}

var semesterTransitions = map[models.SemesterStatus]models.SemesterStatus{
	models.SemesterStatusUpcoming: models.SemesterStatusActive,
	models.SemesterStatusActive:   models.SemesterStatusCompleted,
}

const (
	jobActivateSemester = "semester.activate"
	jobCompleteSemester = "semester.complete"
)

// SemesterService drives semester lifecycle transitions. Activation runs the
// extra session scheduler synchronously.
type SemesterService struct {
	semesters semesterStore
	extra     extraScheduler
	logger    *zap.Logger
}

// NewSemesterService constructs the service.
func NewSemesterService(semesters semesterStore, extra extraScheduler, logger *zap.Logger) *SemesterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{semesters: semesters, extra: extra, logger: logger}
}

// Get returns a semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	semester, err := s.semesters.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
		}
		return nil, appErrors.Internal(err, "failed to load semester")
	}
	return semester, nil
}

// Activate moves an upcoming semester to ACTIVE and places its extra sessions.
func (s *SemesterService) Activate(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error) {
	semester, err := s.move(ctx, id, models.SemesterStatusActive)
	if err != nil {
		return nil, err
	}
	report, err := s.extra.ScheduleExtraSessions(ctx, id)
	if err != nil {
		s.logger.Error("extra session scheduling failed after activation", zap.String("semester_id", id), zap.Error(err))
		return nil, err
	}
	return &dto.SemesterTransitionResponse{Semester: *semester, Extra: report}, nil
}

// ScheduleExtra reruns the extra session scheduler for an active semester.
func (s *SemesterService) ScheduleExtra(ctx context.Context, id string) (*dto.ExtraScheduleReport, error) {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if semester.Status != models.SemesterStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "extra sessions are scheduled for active semesters only")
	}
	return s.extra.ScheduleExtraSessions(ctx, id)
}

// Complete moves an active semester to COMPLETED.
func (s *SemesterService) Complete(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error) {
	semester, err := s.move(ctx, id, models.SemesterStatusCompleted)
	if err != nil {
		return nil, err
	}
	return &dto.SemesterTransitionResponse{Semester: *semester}, nil
}

func (s *SemesterService) move(ctx context.Context, id string, to models.SemesterStatus) (*models.Semester, error) {
	semester, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if semesterTransitions[semester.Status] != to {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("semester cannot move from %s to %s", semester.Status, to))
	}
	if err := s.semesters.UpdateStatus(ctx, nil, id, to); err != nil {
		return nil, appErrors.Internal(err, "failed to update semester status")
	}
	semester.Status = to
	s.logger.Info("semester status changed", zap.String("semester_id", id), zap.String("status", string(to)))
	return semester, nil
}

type dueTransition struct {
	semesterID string
	jobType    string
}

// dueTransitions lists upcoming semesters that have started and active
// semesters whose end date has passed.
func (s *SemesterService) dueTransitions(ctx context.Context, now time.Time) ([]dueTransition, error) {
	today := models.DateOnly(now)
	var due []dueTransition

	upcoming, err := s.semesters.ListByStatus(ctx, models.SemesterStatusUpcoming)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list upcoming semesters")
	}
	for _, semester := range upcoming {
		if !models.DateOnly(semester.StartDate).After(today) {
			due = append(due, dueTransition{semesterID: semester.ID, jobType: jobActivateSemester})
		}
	}

	active, err := s.semesters.ListByStatus(ctx, models.SemesterStatusActive)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list active semesters")
	}
	for _, semester := range active {
		if models.DateOnly(semester.EndDate).Before(today) {
			due = append(due, dueTransition{semesterID: semester.ID, jobType: jobCompleteSemester})
		}
	}
	return due, nil
}

// SweepDue applies every due transition synchronously.
func (s *SemesterService) SweepDue(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	due, err := s.dueTransitions(ctx, now)
	if err != nil {
		return nil, err
	}
	result := &dto.SweepResult{Activated: []string{}, Completed: []string{}}
	for _, item := range due {
		if err := s.apply(ctx, item.jobType, item.semesterID); err != nil {
			result.Failed = append(result.Failed, item.semesterID)
			continue
		}
		if item.jobType == jobActivateSemester {
			result.Activated = append(result.Activated, item.semesterID)
		} else {
			result.Completed = append(result.Completed, item.semesterID)
		}
	}
	return result, nil
}

func (s *SemesterService) apply(ctx context.Context, jobType, semesterID string) error {
	switch jobType {
	case jobActivateSemester:
		_, err := s.Activate(ctx, semesterID)
		return err
	case jobCompleteSemester:
		_, err := s.Complete(ctx, semesterID)
		return err
	default:
		return fmt.Errorf("unknown semester job type %q", jobType)
	}
}

// SemesterSweeperConfig tunes the background sweeper.
type SemesterSweeperConfig struct {
	Interval   time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// SemesterSweeper periodically enqueues due semester transitions onto a
// job queue, one job per semester at a time.
type SemesterSweeper struct {
	semesters *SemesterService
	queue     *jobs.Queue
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSemesterSweeper builds the sweeper and its queue.
func NewSemesterSweeper(semesters *SemesterService, cfg SemesterSweeperConfig, logger *zap.Logger) *SemesterSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	sweeper := &SemesterSweeper{
		semesters: semesters,
		interval:  cfg.Interval,
		logger:    logger,
		now:       time.Now,
	}
	sweeper.queue = jobs.NewQueue("semester-transitions", sweeper.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return sweeper
}

// Start launches the queue worker and the ticker loop.
func (w *SemesterSweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.queue.Start(ctx)

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		w.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

// Stop halts the ticker and drains the worker.
func (w *SemesterSweeper) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.queue.Stop()
}

func (w *SemesterSweeper) tick(ctx context.Context) {
	if _, err := w.enqueueDue(ctx); err != nil {
		w.logger.Warn("semester sweep failed", zap.Error(err))
	}
}

// enqueueDue queues every due transition and returns how many were accepted.
func (w *SemesterSweeper) enqueueDue(ctx context.Context) (int, error) {
	due, err := w.semesters.dueTransitions(ctx, w.now())
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, item := range due {
		err := w.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Key:     "semester:" + item.semesterID,
			Type:    item.jobType,
			Payload: item.semesterID,
		})
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, jobs.ErrDuplicate):
		default:
			return accepted, err
		}
	}
	return accepted, nil
}

func (w *SemesterSweeper) handle(ctx context.Context, job jobs.Job) error {
	semesterID, _ := job.Payload.(string)
	if job.Type == jobActivateSemester && job.Attempt > 0 {
		// A retried activation may have committed the status before scheduling failed.
		if semester, err := w.semesters.Get(ctx, semesterID); err == nil && semester.Status == models.SemesterStatusActive {
			_, err := w.semesters.ScheduleExtra(ctx, semesterID)
			return err
		}
	}
	err := w.semesters.apply(ctx, job.Type, semesterID)
	if errors.Is(err, appErrors.ErrInvalidTransition) {
		// Already moved by an operator or another instance.
		return nil
	}
	return err
}

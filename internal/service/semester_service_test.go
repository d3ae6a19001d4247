package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type extraSchedulerStub struct {
	mu       sync.Mutex
	calls    []string
	failures int
	block    chan struct{}
}

func (s *extraSchedulerStub) ScheduleExtraSessions(ctx context.Context, semesterID string) (*dto.ExtraScheduleReport, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, semesterID)
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("scheduler unavailable")
	}
	return &dto.ExtraScheduleReport{SemesterID: semesterID, ByStrategy: map[string]int{}}, nil
}

func (s *extraSchedulerStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func semesterAt(id string, start, end time.Time, status models.SemesterStatus) models.Semester {
	return models.Semester{ID: id, Code: id, StartDate: start, EndDate: end, Status: status}
}

func TestActivateRunsExtraScheduling(t *testing.T) {
	store := newSemesterStoreStub(semester2025())
	extra := &extraSchedulerStub{}
	svc := NewSemesterService(store, extra, nil)

	resp, err := svc.Activate(context.Background(), testSemesterID)
	require.NoError(t, err)
	assert.Equal(t, models.SemesterStatusActive, resp.Semester.Status)
	require.NotNil(t, resp.Extra)
	assert.Equal(t, []string{testSemesterID}, extra.calls)
	assert.Equal(t, models.SemesterStatusActive, store.status(testSemesterID))

	_, err = svc.Activate(context.Background(), testSemesterID)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	done, err := svc.Complete(context.Background(), testSemesterID)
	require.NoError(t, err)
	assert.Equal(t, models.SemesterStatusCompleted, done.Semester.Status)
	assert.Nil(t, done.Extra)

	_, err = svc.Complete(context.Background(), testSemesterID)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestCompleteRequiresActiveSemester(t *testing.T) {
	svc := NewSemesterService(newSemesterStoreStub(semester2025()), &extraSchedulerStub{}, nil)

	_, err := svc.Complete(context.Background(), testSemesterID)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	_, err = svc.Activate(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleExtraRequiresActiveSemester(t *testing.T) {
	store := newSemesterStoreStub(semester2025())
	extra := &extraSchedulerStub{}
	svc := NewSemesterService(store, extra, nil)

	_, err := svc.ScheduleExtra(context.Background(), testSemesterID)
	assert.True(t, errors.Is(err, appErrors.ErrPreconditionFailed))

	require.NoError(t, store.UpdateStatus(context.Background(), nil, testSemesterID, models.SemesterStatusActive))
	report, err := svc.ScheduleExtra(context.Background(), testSemesterID)
	require.NoError(t, err)
	assert.Equal(t, testSemesterID, report.SemesterID)
}

func TestSweepDueMovesStartedAndEndedSemesters(t *testing.T) {
	store := newSemesterStoreStub(
		semesterAt("sem-started", date(2025, 1, 6), date(2025, 4, 27), models.SemesterStatusUpcoming),
		semesterAt("sem-future", date(2025, 9, 1), date(2025, 12, 20), models.SemesterStatusUpcoming),
		semesterAt("sem-ended", date(2024, 8, 1), date(2024, 12, 20), models.SemesterStatusActive),
		semesterAt("sem-running", date(2024, 12, 1), date(2025, 5, 1), models.SemesterStatusActive),
	)
	extra := &extraSchedulerStub{}
	svc := NewSemesterService(store, extra, nil)

	result, err := svc.SweepDue(context.Background(), time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"sem-started"}, result.Activated)
	assert.Equal(t, []string{"sem-ended"}, result.Completed)
	assert.Empty(t, result.Failed)

	assert.Equal(t, models.SemesterStatusActive, store.status("sem-started"))
	assert.Equal(t, models.SemesterStatusUpcoming, store.status("sem-future"))
	assert.Equal(t, models.SemesterStatusCompleted, store.status("sem-ended"))
	assert.Equal(t, models.SemesterStatusActive, store.status("sem-running"))
}

func TestSweepDueReportsFailures(t *testing.T) {
	store := newSemesterStoreStub(semester2025())
	svc := NewSemesterService(store, &extraSchedulerStub{failures: 1}, nil)

	result, err := svc.SweepDue(context.Background(), date(2025, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{testSemesterID}, result.Failed)
	assert.Empty(t, result.Activated)
}

func TestSemesterSweeperRetriesActivation(t *testing.T) {
	store := newSemesterStoreStub(semester2025())
	extra := &extraSchedulerStub{failures: 1}
	svc := NewSemesterService(store, extra, nil)
	sweeper := NewSemesterSweeper(svc, SemesterSweeperConfig{Interval: time.Hour, MaxRetries: 2, RetryDelay: time.Millisecond}, nil)
	sweeper.now = func() time.Time { return date(2025, 2, 1) }

	sweeper.Start(context.Background())
	defer sweeper.Stop()

	assert.Eventually(t, func() bool { return extra.callCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.SemesterStatusActive, store.status(testSemesterID))
}

func TestSemesterSweeperSkipsQueuedSemesters(t *testing.T) {
	store := newSemesterStoreStub(semester2025())
	extra := &extraSchedulerStub{block: make(chan struct{})}
	svc := NewSemesterService(store, extra, nil)
	sweeper := NewSemesterSweeper(svc, SemesterSweeperConfig{Interval: time.Hour}, nil)
	sweeper.now = func() time.Time { return date(2025, 2, 1) }
	sweeper.queue.Start(context.Background())
	defer sweeper.queue.Stop()

	accepted, err := sweeper.enqueueDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	accepted, err = sweeper.enqueueDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, accepted, "a semester is queued at most once")

	close(extra.block)
	assert.Eventually(t, func() bool { return sweeper.queue.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.SemesterStatusActive, store.status(testSemesterID))
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-session-scheduler/internal/models"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
)

type schedulingTx struct {
	db *sqlx.DB
}

func (t *schedulingTx) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newSchedulingTx(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &schedulingTx{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func expectTx(mock sqlmock.Sqlmock, commits int) {
	for i := 0; i < commits; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
}

func expectRolledBackTx(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

type classMeta struct {
	teacherID string
	code      string
}

type sessionStoreStub struct {
	mu        sync.Mutex
	sessions  []models.SessionView
	classes   map[string]classMeta
	lockCalls int
	created   []models.Session
	updates   []models.Session
	deleted   []string
	createErr error
	updateErr error
}

func newSessionStoreStub(classes ...models.ClassOffering) *sessionStoreStub {
	stub := &sessionStoreStub{classes: map[string]classMeta{}}
	for _, class := range classes {
		stub.classes[class.ID] = classMeta{teacherID: class.TeacherID, code: class.Code}
	}
	return stub
}

func (s *sessionStoreStub) seed(views ...models.SessionView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, views...)
}

func (s *sessionStoreStub) byID(id string) (models.SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range s.sessions {
		if view.ID == id {
			return view, true
		}
	}
	return models.SessionView{}, false
}

func (s *sessionStoreStub) LockSemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) error {
	s.mu.Lock()
	s.lockCalls++
	s.mu.Unlock()
	return nil
}

func (s *sessionStoreStub) ListCommittedBySemester(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionView
	for _, view := range s.sessions {
		if view.SemesterID == semesterID && view.Occupies() {
			out = append(out, view)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) ListPendingExtra(ctx context.Context, exec sqlx.ExtContext, semesterID string) ([]models.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionView
	for _, view := range s.sessions {
		if view.SemesterID == semesterID && view.IsPending && view.Category == models.SessionCategoryExtra && view.Status != models.SessionStatusCancelled {
			out = append(out, view)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClassCode != out[j].ClassCode {
			return out[i].ClassCode < out[j].ClassCode
		}
		return out[i].SessionNumber < out[j].SessionNumber
	})
	return out, nil
}

func (s *sessionStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SessionView, error) {
	view, ok := s.byID(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &view, nil
}

func (s *sessionStoreStub) List(ctx context.Context, filter models.SessionFilter) ([]models.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SessionView
	for _, view := range s.sessions {
		if filter.SemesterID != "" && view.SemesterID != filter.SemesterID {
			continue
		}
		if filter.ClassOfferingID != "" && view.ClassOfferingID != filter.ClassOfferingID {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *sessionStoreStub) CountByClass(ctx context.Context, exec sqlx.ExtContext, classID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, view := range s.sessions {
		if view.ClassOfferingID == classID {
			count++
		}
	}
	return count, nil
}

func (s *sessionStoreStub) BulkCreate(ctx context.Context, exec sqlx.ExtContext, sessions []models.Session) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range sessions {
		meta := s.classes[session.ClassOfferingID]
		s.sessions = append(s.sessions, models.SessionView{Session: session, TeacherID: meta.teacherID, ClassCode: meta.code})
		s.created = append(s.created, session)
	}
	return nil
}

func (s *sessionStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, session *models.Session) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == session.ID {
			s.sessions[i].Session = *session
		}
	}
	s.updates = append(s.updates, *session)
	return nil
}

func (s *sessionStoreStub) DeleteByClass(ctx context.Context, exec sqlx.ExtContext, classID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, view := range s.sessions {
		if view.ClassOfferingID != classID {
			kept = append(kept, view)
		}
	}
	s.sessions = kept
	s.deleted = append(s.deleted, classID)
	return nil
}

type roomCatalogStub struct {
	rooms     []models.Room
	onlineErr error
}

func (s *roomCatalogStub) ListActive(ctx context.Context) ([]models.Room, error) {
	var out []models.Room
	for _, room := range s.rooms {
		if room.Active {
			out = append(out, room)
		}
	}
	return out, nil
}

func (s *roomCatalogStub) FindByID(ctx context.Context, id string) (*models.Room, error) {
	for _, room := range s.rooms {
		if room.ID == id {
			r := room
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *roomCatalogStub) FindOnline(ctx context.Context) (*models.Room, error) {
	if s.onlineErr != nil {
		return nil, s.onlineErr
	}
	for _, room := range s.rooms {
		if room.IsOnline() {
			r := room
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

type semesterStoreStub struct {
	mu    sync.Mutex
	items map[string]*models.Semester
}

func newSemesterStoreStub(semesters ...models.Semester) *semesterStoreStub {
	stub := &semesterStoreStub{items: map[string]*models.Semester{}}
	for i := range semesters {
		s := semesters[i]
		stub.items[s.ID] = &s
	}
	return stub
}

func (s *semesterStoreStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *item
	return &out, nil
}

func (s *semesterStoreStub) ListByStatus(ctx context.Context, status models.SemesterStatus) ([]models.Semester, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Semester
	for _, item := range s.items {
		if item.Status == status {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *semesterStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SemesterStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	item.Status = status
	return nil
}

func (s *semesterStoreStub) status(id string) models.SemesterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Status
}

type classStoreStub struct {
	items map[string]models.ClassOffering
}

func newClassStoreStub(classes ...models.ClassOffering) *classStoreStub {
	stub := &classStoreStub{items: map[string]models.ClassOffering{}}
	for _, class := range classes {
		stub.items[class.ID] = class
	}
	return stub
}

func (s *classStoreStub) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	class, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (s *classStoreStub) ListBySemester(ctx context.Context, semesterID string) ([]models.ClassOffering, error) {
	var out []models.ClassOffering
	for _, class := range s.items {
		if class.SemesterID == semesterID {
			out = append(out, class)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type subjectStoreStub struct {
	items map[string]models.Subject
}

func (s *subjectStoreStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &subject, nil
}

type rosterStoreStub struct {
	entries []models.RosterEntry
}

func (s *rosterStoreStub) ListRostersBySemester(ctx context.Context, semesterID string) ([]models.RosterEntry, error) {
	return s.entries, nil
}

type cacheRepoStub struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{data: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// fixtures

const (
	testSemesterID = "sem-2025a"
	onlineRoomID   = "room-online"
)

func semester2025() models.Semester {
	return models.Semester{
		ID:        testSemesterID,
		Code:      "2025A",
		StartDate: date(2025, 1, 6),
		EndDate:   date(2025, 4, 27),
		Status:    models.SemesterStatusUpcoming,
	}
}

func roomFixtures() []models.Room {
	return []models.Room{
		{ID: "R202", Code: "R202", Capacity: 60, Type: models.RoomTypeLecture, Active: true},
		{ID: "R101", Code: "R101", Capacity: 45, Type: models.RoomTypeLecture, Active: true},
		{ID: "R303", Code: "R303", Capacity: 30, Type: models.RoomTypeLab, Active: true},
		{ID: "R999", Code: "R999", Capacity: 200, Type: models.RoomTypeLecture, Active: false},
		{ID: onlineRoomID, Code: "ONLINE", Type: models.RoomTypeOnline, Active: true},
	}
}

func classFixture(id, code, teacherID string, capacity int) models.ClassOffering {
	friday := models.Friday
	ca5 := models.TimeSlotCA5
	return models.ClassOffering{
		ID:                 id,
		Code:               code,
		SubjectID:          "sub-cs101",
		TeacherID:          teacherID,
		SemesterID:         testSemesterID,
		DayOfWeek:          models.Monday,
		TimeSlot:           models.TimeSlotCA1,
		ELearningDayOfWeek: &friday,
		ELearningTimeSlot:  &ca5,
		Capacity:           capacity,
	}
}

func subjectFixture(inPerson, fixed, eLearning int) models.Subject {
	return models.Subject{ID: "sub-cs101", Code: "CS101", Name: "Programming", InPersonSessions: inPerson, FixedSessions: fixed, ELearningSessions: eLearning}
}

func placedView(id string, class models.ClassOffering, number int, d time.Time, slot models.TimeSlot, roomID string) models.SessionView {
	session := models.Session{
		ID:              id,
		ClassOfferingID: class.ID,
		SemesterID:      class.SemesterID,
		SessionNumber:   number,
		SessionType:     models.SessionTypeInPerson,
		Category:        models.SessionCategoryFixed,
	}
	session.SetOriginal(models.NewPlacement(d, slot, roomID))
	return models.SessionView{Session: session, TeacherID: class.TeacherID, ClassCode: class.Code}
}

func pendingView(id string, class models.ClassOffering, number int) models.SessionView {
	return models.SessionView{
		Session: models.Session{
			ID:              id,
			ClassOfferingID: class.ID,
			SemesterID:      class.SemesterID,
			SessionNumber:   number,
			SessionType:     models.SessionTypeInPerson,
			Category:        models.SessionCategoryExtra,
			IsPending:       true,
			Status:          models.SessionStatusScheduled,
		},
		TeacherID: class.TeacherID,
		ClassCode: class.Code,
	}
}

package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// SemesterLocker serialises placement work per semester inside one process.
// The repository's advisory lock extends the guarantee across processes.
type SemesterLocker struct {
	mu    sync.Mutex
	locks map[string]*semesterLockEntry
}

type semesterLockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewSemesterLocker constructs an empty keyed lock.
func NewSemesterLocker() *SemesterLocker {
	return &SemesterLocker{locks: make(map[string]*semesterLockEntry)}
}

// Lock acquires the semester lock and returns its release func.
func (l *SemesterLocker) Lock(semesterID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[semesterID]
	if !ok {
		entry = &semesterLockEntry{}
		l.locks[semesterID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, semesterID)
		}
		l.mu.Unlock()
	}
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func withTx(ctx context.Context, provider txProvider, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := provider.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

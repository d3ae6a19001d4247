package models

import "time"

// Subject carries the session counts every offering of it must meet.
type Subject struct {
	ID                string    `db:"id" json:"id"`
	Code              string    `db:"code" json:"code"`
	Name              string    `db:"name" json:"name"`
	InPersonSessions  int       `db:"in_person_sessions" json:"in_person_sessions"`
	FixedSessions     int       `db:"fixed_sessions" json:"fixed_sessions"`
	ELearningSessions int       `db:"e_learning_sessions" json:"e_learning_sessions"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ExtraSessions is the number of in-person sessions beyond the fixed weekly run.
func (s Subject) ExtraSessions() int {
	if s.InPersonSessions <= s.FixedSessions {
		return 0
	}
	return s.InPersonSessions - s.FixedSessions
}

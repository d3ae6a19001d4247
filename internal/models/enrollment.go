package models

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// RosterEntry links an actively enrolled student to a class offering.
type RosterEntry struct {
	ClassOfferingID string `db:"class_offering_id" json:"class_offering_id"`
	StudentID       string `db:"student_id" json:"student_id"`
}

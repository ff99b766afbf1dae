package models

import "time"

// AbsenceType classifies a teacher absence.
type AbsenceType string

const (
	AbsenceSick      AbsenceType = "sick"
	AbsenceVacation  AbsenceType = "vacation"
	AbsenceEmergency AbsenceType = "emergency"
	AbsenceTraining  AbsenceType = "training"
)

// AbsenceStatus tracks coverage progress.
type AbsenceStatus string

const (
	AbsencePending   AbsenceStatus = "pending"
	AbsenceCovered   AbsenceStatus = "covered"
	AbsenceCancelled AbsenceStatus = "cancelled"
)

// Absence is a teacher absence window. Created by the external HR/attendance
// system; this service only updates status and coverage counters.
type Absence struct {
	ID             string        `db:"id" json:"id"`
	InstitutionID  string        `db:"institution_id" json:"institution_id"`
	TermID         string        `db:"term_id" json:"term_id"`
	TeacherID      string        `db:"teacher_id" json:"teacher_id"`
	StartDate      time.Time     `db:"start_date" json:"start_date"`
	EndDate        time.Time     `db:"end_date" json:"end_date"`
	Type           AbsenceType   `db:"absence_type" json:"absence_type"`
	Status         AbsenceStatus `db:"status" json:"status"`
	CoveredPeriods int           `db:"covered_periods" json:"covered_periods"`
	TotalPeriods   int           `db:"total_periods" json:"total_periods"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// AbsenceFilter narrows down absence listings.
type AbsenceFilter struct {
	InstitutionID string
	TermID        string
	TeacherID     string
	Status        AbsenceStatus
	Page          int
	PageSize      int
}

package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID             string    `db:"id" json:"id"`
	InstitutionID  string    `db:"institution_id" json:"institution_id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Expertise      *string   `db:"expertise" json:"expertise,omitempty"`
	MaxWeeklyHours int       `db:"max_weekly_hours" json:"max_weekly_hours"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherQualification links a teacher to a subject they may teach.
type TeacherQualification struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
	Primary   bool   `db:"is_primary" json:"is_primary"`
}

// TeacherPreference stores preferred and avoided teaching windows.
// Day and period lists are JSON arrays of ints.
type TeacherPreference struct {
	ID             string         `db:"id" json:"id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	PreferredDays  types.JSONText `db:"preferred_days" json:"preferred_days,omitempty"`
	AvoidedDays    types.JSONText `db:"avoided_days" json:"avoided_days,omitempty"`
	PreferredSlots types.JSONText `db:"preferred_slots" json:"preferred_slots,omitempty"`
	AvoidedSlots   types.JSONText `db:"avoided_slots" json:"avoided_slots,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// TeacherLoad aggregates a teacher's committed weekly load. CurrentWeeklyHours
// and SubjectCount are derived from active schedule slots, never stored.
type TeacherLoad struct {
	TeacherID          string  `json:"teacher_id"`
	MaxWeeklyHours     int     `json:"max_weekly_hours"`
	CurrentWeeklyHours int     `json:"current_weekly_hours"`
	SubjectCount       int     `json:"subject_count"`
	Utilization        float64 `json:"utilization"`
}

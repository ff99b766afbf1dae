package models

import "time"

// ClassSection represents an academic class or section.
type ClassSection struct {
	ID                string    `db:"id" json:"id"`
	InstitutionID     string    `db:"institution_id" json:"institution_id"`
	Name              string    `db:"name" json:"name"`
	GradeLevel        string    `db:"grade_level" json:"grade_level"`
	SectionLabel      string    `db:"section_label" json:"section_label"`
	MaxCapacity       int       `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollment int       `db:"current_enrollment" json:"current_enrollment"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubjectTarget is the weekly-hours target for a class/subject pair,
// derived from the curriculum mapping and the subject default.
type ClassSubjectTarget struct {
	ClassID     string `db:"class_id" json:"class_id"`
	SubjectID   string `db:"subject_id" json:"subject_id"`
	WeeklyHours int    `db:"weekly_hours" json:"weekly_hours"`
}

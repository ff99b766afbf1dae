package models

import "time"

// SubstitutionStatus tracks a substitute assignment through its life.
type SubstitutionStatus string

const (
	SubstitutionAssigned  SubstitutionStatus = "assigned"
	SubstitutionConfirmed SubstitutionStatus = "confirmed"
	SubstitutionCompleted SubstitutionStatus = "completed"
	SubstitutionCancelled SubstitutionStatus = "cancelled"
)

// Substitution links one absence-affected slot occurrence to a substitute
// teacher for a specific date.
type Substitution struct {
	ID                  string             `db:"id" json:"id"`
	AbsenceID           string             `db:"absence_id" json:"absence_id"`
	SlotID              string             `db:"slot_id" json:"slot_id"`
	SubstituteTeacherID string             `db:"substitute_teacher_id" json:"substitute_teacher_id"`
	Date                time.Time          `db:"date" json:"date"`
	DayOfWeek           int                `db:"day_of_week" json:"day_of_week"`
	Period              int                `db:"period" json:"period"`
	Status              SubstitutionStatus `db:"status" json:"status"`
	CreatedAt           time.Time          `db:"created_at" json:"created_at"`
}

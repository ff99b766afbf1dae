package dto

import (
	"time"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
)

// ResolveMode selects auto-commit or operator-chosen substitution.
type ResolveMode string

const (
	ResolveAuto   ResolveMode = "auto"
	ResolveManual ResolveMode = "manual"
)

// ResolveAbsenceRequest drives the substitution resolver for one absence.
// Manual mode requires the target slot occurrence and the chosen teacher.
type ResolveAbsenceRequest struct {
	Mode      ResolveMode `json:"mode" validate:"required,oneof=auto manual"`
	SlotID    string      `json:"slotId,omitempty"`
	Date      *time.Time  `json:"date,omitempty"`
	TeacherID string      `json:"teacherId,omitempty"`
}

// SubstitutionWarning reports an uncovered slot occurrence.
type SubstitutionWarning struct {
	SlotID    string    `json:"slotId"`
	Date      time.Time `json:"date"`
	DayOfWeek int       `json:"dayOfWeek"`
	Period    int       `json:"period"`
	SubjectID string    `json:"subjectId"`
	ClassID   string    `json:"classId"`
	Reason    string    `json:"reason"`
}

// SubstituteCandidate is one ranked eligibility entry, returned for manual
// selection alongside auto results.
type SubstituteCandidate struct {
	TeacherID          string  `json:"teacherId"`
	ExactQualification bool    `json:"exactQualification"`
	ResultingLoad      float64 `json:"resultingLoad"`
}

// ResolveAbsenceResponse summarises coverage after a resolver run.
type ResolveAbsenceResponse struct {
	AbsenceID      string                `json:"absenceId"`
	CoveredPeriods int                   `json:"coveredPeriods"`
	TotalPeriods   int                   `json:"totalPeriods"`
	Substitutions  []models.Substitution `json:"substitutions"`
	Warnings       []SubstitutionWarning `json:"warnings"`
}

// AbsenceListQuery filters absence listings.
type AbsenceListQuery struct {
	InstitutionID string `form:"institutionId"`
	TermID        string `form:"termId"`
	TeacherID     string `form:"teacherId"`
	Status        string `form:"status"`
	Page          int    `form:"page"`
	PageSize      int    `form:"pageSize"`
}

package dto

import "github.com/noah-isme/emis-scheduler-api/internal/models"

// SlotOperation selects the lifecycle transition to apply.
type SlotOperation string

const (
	SlotOpEdit   SlotOperation = "edit"
	SlotOpCancel SlotOperation = "cancel"
	SlotOpMove   SlotOperation = "move"
)

// SlotMutationRequest applies one lifecycle transition to a schedule slot.
// Edit may change teacher, subject, room or slot type. Move relocates the
// slot to a new (day, period) coordinate. Force lets non-critical conflicts
// through; critical conflicts are never forceable.
type SlotMutationRequest struct {
	Operation SlotOperation    `json:"operation" validate:"required,oneof=edit cancel move"`
	TeacherID *string          `json:"teacherId,omitempty"`
	SubjectID *string          `json:"subjectId,omitempty"`
	Room      *string          `json:"room,omitempty"`
	SlotType  *models.SlotType `json:"slotType,omitempty" validate:"omitempty,oneof=regular exam break special"`
	DayOfWeek *int             `json:"dayOfWeek,omitempty" validate:"omitempty,min=1,max=7"`
	Period    *int             `json:"period,omitempty" validate:"omitempty,min=1"`
	Force     bool             `json:"force"`
}

// SlotListQuery filters committed slot listings.
type SlotListQuery struct {
	InstitutionID string `form:"institutionId"`
	TermID        string `form:"termId"`
	ClassID       string `form:"classId"`
	TeacherID     string `form:"teacherId"`
	Status        string `form:"status"`
	Page          int    `form:"page"`
	PageSize      int    `form:"pageSize"`
}

// ConflictDetail is the payload attached to CONFLICT errors.
type ConflictDetail struct {
	Conflicts []models.Conflict `json:"conflicts"`
}

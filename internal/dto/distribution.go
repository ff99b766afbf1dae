package dto

import "github.com/noah-isme/emis-scheduler-api/internal/models"

// BuildPreviewRequest asks the distribution engine for an assignment plan.
type BuildPreviewRequest struct {
	InstitutionID   string                       `json:"institutionId" validate:"required"`
	TermID          string                       `json:"termId" validate:"required"`
	Strategy        models.Strategy              `json:"strategy" validate:"required,oneof=automatic manual hybrid"`
	SelectedClasses []string                     `json:"selectedClasses" validate:"required,min=1,dive,required"`
	Settings        *models.DistributionSettings `json:"settings,omitempty"`
}

// PlanResponse returns the generated preview.
type PlanResponse struct {
	Mode string       `json:"mode"`
	Plan *models.Plan `json:"plan"`
}

// CommitPlanRequest persists a previewed plan as committed schedule slots.
type CommitPlanRequest struct {
	PlanID                  string `json:"planId" validate:"required"`
	ExpectedScheduleVersion int    `json:"expectedScheduleVersion" validate:"min=0"`
}

// CommitPlanResponse returns the committed slots and the new schedule version.
type CommitPlanResponse struct {
	ScheduleVersion int                   `json:"scheduleVersion"`
	Slots           []models.ScheduleSlot `json:"slots"`
}

// StalePlanDetail names the proposed slots that now conflict with committed
// state, for PLAN_STALE error payloads.
type StalePlanDetail struct {
	ExpectedVersion int               `json:"expectedVersion"`
	CurrentVersion  int               `json:"currentVersion"`
	StaleSlots      []models.PlanSlot `json:"staleSlots"`
	Conflicts       []models.Conflict `json:"conflicts,omitempty"`
}

// SettingsQuery scopes distribution settings lookups.
type SettingsQuery struct {
	InstitutionID string `form:"institutionId" json:"institutionId"`
	TermID        string `form:"termId" json:"termId"`
}

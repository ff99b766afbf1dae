package dto

// GridQuery scopes time-grid resolution.
type GridQuery struct {
	InstitutionID string `form:"institutionId" json:"institutionId"`
	TermID        string `form:"termId" json:"termId"`
}

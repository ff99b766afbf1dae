package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/emis-scheduler-api/internal/dto"
	"github.com/noah-isme/emis-scheduler-api/internal/models"
	"github.com/noah-isme/emis-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
	"github.com/noah-isme/emis-scheduler-api/pkg/response"
)

const maxSelectedClasses = 64

type distributionEngine interface {
	BuildPreview(ctx context.Context, req dto.BuildPreviewRequest) (*dto.PlanResponse, error)
	CommitPlan(ctx context.Context, req dto.CommitPlanRequest) (*dto.CommitPlanResponse, error)
	GetSettings(ctx context.Context, institutionID, termID string) (*models.DistributionSettings, error)
	UpdateSettings(ctx context.Context, settings *models.DistributionSettings) error
}

// DistributionHandler exposes plan preview, commit and settings endpoints.
type DistributionHandler struct {
	service distributionEngine
}

// NewDistributionHandler constructs the handler.
func NewDistributionHandler(svc *service.DistributionService) *DistributionHandler {
	return &DistributionHandler{service: svc}
}

// Preview godoc
// @Summary Build an uncommitted assignment plan preview
// @Description Nothing is persisted; the plan is held server-side until commit or expiry.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.BuildPreviewRequest true "Preview payload"
// @Success 200 {object} response.Envelope
// @Router /schedule/preview [post]
func (h *DistributionHandler) Preview(c *gin.Context) {
	var req dto.BuildPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}
	if len(req.SelectedClasses) > maxSelectedClasses {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "selectedClasses exceeds supported limit"))
		return
	}
	result, err := h.service.BuildPreview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Commit godoc
// @Summary Commit a previewed plan as schedule slots
// @Description Fails with PLAN_STALE when the committed schedule changed since the preview.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.CommitPlanRequest true "Commit payload"
// @Success 201 {object} response.Envelope
// @Router /schedule/commit [post]
func (h *DistributionHandler) Commit(c *gin.Context) {
	var req dto.CommitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
		return
	}
	result, err := h.service.CommitPlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetSettings godoc
// @Summary Get distribution settings for an institution/term
// @Tags Schedule
// @Produce json
// @Param institutionId query string true "Institution ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/settings [get]
func (h *DistributionHandler) GetSettings(c *gin.Context) {
	var query dto.SettingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings query"))
		return
	}
	settings, err := h.service.GetSettings(c.Request.Context(), query.InstitutionID, query.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateSettings godoc
// @Summary Replace distribution settings for an institution/term
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body models.DistributionSettings true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /schedule/settings [put]
func (h *DistributionHandler) UpdateSettings(c *gin.Context) {
	var settings models.DistributionSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	if err := h.service.UpdateSettings(c.Request.Context(), &settings); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

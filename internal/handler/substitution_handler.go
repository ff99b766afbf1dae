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

type absenceResolver interface {
	ListAbsences(ctx context.Context, q dto.AbsenceListQuery) ([]models.Absence, int, error)
	ListSubstitutions(ctx context.Context, absenceID string) ([]models.Substitution, error)
	ResolveAbsence(ctx context.Context, absenceID string, req dto.ResolveAbsenceRequest) (*dto.ResolveAbsenceResponse, error)
}

// SubstitutionHandler exposes absence and substitution endpoints.
type SubstitutionHandler struct {
	service absenceResolver
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(svc *service.SubstitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{service: svc}
}

// ListAbsences godoc
// @Summary List teacher absences
// @Tags Absences
// @Produce json
// @Param institutionId query string false "Institution ID"
// @Param termId query string false "Term ID"
// @Param teacherId query string false "Teacher ID"
// @Param status query string false "Absence status"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *SubstitutionHandler) ListAbsences(c *gin.Context) {
	var query dto.AbsenceListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence query"))
		return
	}
	absences, total, err := h.service.ListAbsences(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	response.JSON(c, http.StatusOK, absences, &models.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Resolve godoc
// @Summary Resolve an absence with substitute assignments
// @Description Auto mode ranks and assigns substitutes; manual mode applies the chosen teacher. Partial coverage returns warnings, not an error.
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body dto.ResolveAbsenceRequest true "Resolve payload"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/resolve [post]
func (h *SubstitutionHandler) Resolve(c *gin.Context) {
	var req dto.ResolveAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolve payload"))
		return
	}
	result, err := h.service.ResolveAbsence(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListSubstitutions godoc
// @Summary List substitute assignments for an absence
// @Tags Absences
// @Produce json
// @Param id path string true "Absence ID"
// @Success 200 {object} response.Envelope
// @Router /absences/{id}/substitutions [get]
func (h *SubstitutionHandler) ListSubstitutions(c *gin.Context) {
	subs, err := h.service.ListSubstitutions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

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

type gridProvider interface {
	Resolve(ctx context.Context, institutionID, termID string) (*models.TimeGrid, error)
}

// GridHandler exposes the resolved time grid.
type GridHandler struct {
	service gridProvider
}

// NewGridHandler constructs the handler.
func NewGridHandler(svc *service.TimeGridService) *GridHandler {
	return &GridHandler{service: svc}
}

// Get godoc
// @Summary Resolve the time grid for an institution/term
// @Tags Schedule
// @Produce json
// @Param institutionId query string true "Institution ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /schedule/grid [get]
func (h *GridHandler) Get(c *gin.Context) {
	var query dto.GridQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grid query"))
		return
	}
	grid, err := h.service.Resolve(c.Request.Context(), query.InstitutionID, query.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

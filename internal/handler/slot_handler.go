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

type slotLifecycle interface {
	ListSlots(ctx context.Context, q dto.SlotListQuery) ([]models.ScheduleSlot, int, error)
	Mutate(ctx context.Context, slotID string, req dto.SlotMutationRequest) (*models.ScheduleSlot, error)
}

// SlotHandler exposes committed slot listing and lifecycle transitions.
type SlotHandler struct {
	service slotLifecycle
}

// NewSlotHandler constructs the handler.
func NewSlotHandler(svc *service.SlotLifecycleService) *SlotHandler {
	return &SlotHandler{service: svc}
}

// List godoc
// @Summary List committed schedule slots
// @Tags Schedule
// @Produce json
// @Param institutionId query string false "Institution ID"
// @Param termId query string false "Term ID"
// @Param classId query string false "Class ID"
// @Param teacherId query string false "Teacher ID"
// @Param status query string false "Slot status"
// @Success 200 {object} response.Envelope
// @Router /schedule/slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	var query dto.SlotListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot query"))
		return
	}
	slots, total, err := h.service.ListSlots(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	response.JSON(c, http.StatusOK, slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total})
}

// Mutate godoc
// @Summary Apply a lifecycle transition to a slot
// @Description Supports edit, cancel and move. Critical conflicts are never forceable.
// @Tags Schedule
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body dto.SlotMutationRequest true "Mutation payload"
// @Success 200 {object} response.Envelope
// @Router /schedule/slots/{id} [patch]
func (h *SlotHandler) Mutate(c *gin.Context) {
	var req dto.SlotMutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mutation payload"))
		return
	}
	slot, err := h.service.Mutate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/emis-scheduler-api/internal/models"
	"github.com/noah-isme/emis-scheduler-api/internal/service"
	"github.com/noah-isme/emis-scheduler-api/pkg/response"
)

type workloadReader interface {
	ListTeacherLoads(ctx context.Context, institutionID, termID string) ([]models.TeacherLoad, error)
	ListSubjects(ctx context.Context) ([]models.Subject, error)
}

// WorkloadHandler exposes derived teacher load and subject reference data.
type WorkloadHandler struct {
	service workloadReader
}

// NewWorkloadHandler constructs the handler.
func NewWorkloadHandler(svc *service.WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{service: svc}
}

// TeacherLoads godoc
// @Summary List derived teacher workload summaries
// @Tags Schedule
// @Produce json
// @Param institutionId query string true "Institution ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/loads [get]
func (h *WorkloadHandler) TeacherLoads(c *gin.Context) {
	loads, err := h.service.ListTeacherLoads(c.Request.Context(), c.Query("institutionId"), c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loads, nil)
}

// Subjects godoc
// @Summary List subjects
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *WorkloadHandler) Subjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

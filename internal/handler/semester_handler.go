package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	"github.com/noah-isme/sma-session-scheduler/internal/service"
	"github.com/noah-isme/sma-session-scheduler/pkg/response"
)

type semesterLifecycle interface {
	Get(ctx context.Context, id string) (*models.Semester, error)
	Activate(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error)
	Complete(ctx context.Context, id string) (*dto.SemesterTransitionResponse, error)
	ScheduleExtra(ctx context.Context, id string) (*dto.ExtraScheduleReport, error)
	SweepDue(ctx context.Context, now time.Time) (*dto.SweepResult, error)
}

// SemesterHandler exposes semester lifecycle endpoints.
type SemesterHandler struct {
	service semesterLifecycle
	now     func() time.Time
}

// NewSemesterHandler constructs the handler.
func NewSemesterHandler(svc *service.SemesterService) *SemesterHandler {
	return &SemesterHandler{service: svc, now: time.Now}
}

// Get godoc
// @Summary Get semester
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id} [get]
func (h *SemesterHandler) Get(c *gin.Context) {
	semester, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Activate godoc
// @Summary Activate semester
// @Description Moves an upcoming semester to ACTIVE and places its pending extra sessions.
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters/{id}/activate [post]
func (h *SemesterHandler) Activate(c *gin.Context) {
	result, err := h.service.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Complete godoc
// @Summary Complete semester
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/complete [post]
func (h *SemesterHandler) Complete(c *gin.Context) {
	result, err := h.service.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ScheduleExtra godoc
// @Summary Place pending extra sessions
// @Description Reruns the extra session scheduler for an active semester.
// @Tags Semesters
// @Produce json
// @Param id path string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /semesters/{id}/extra-sessions [post]
func (h *SemesterHandler) ScheduleExtra(c *gin.Context) {
	report, err := h.service.ScheduleExtra(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Sweep godoc
// @Summary Apply due semester transitions
// @Tags Semesters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters/sweep [post]
func (h *SemesterHandler) Sweep(c *gin.Context) {
	result, err := h.service.SweepDue(c.Request.Context(), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

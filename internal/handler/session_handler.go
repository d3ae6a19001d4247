package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
	"github.com/noah-isme/sma-session-scheduler/pkg/response"
)

type sessionReader interface {
	List(ctx context.Context, query dto.SessionListQuery) ([]dto.SessionResponse, error)
	Get(ctx context.Context, id string) (*dto.SessionResponse, error)
	MarkCompleted(ctx context.Context, id string) (*dto.SessionResponse, error)
	MarkCancelled(ctx context.Context, id string, req dto.CancelSessionRequest) (*dto.SessionResponse, error)
}

type sessionRescheduler interface {
	Reschedule(ctx context.Context, sessionID string, req dto.RescheduleRequest) (*dto.SessionResponse, error)
	ResetToOriginal(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	BatchReschedule(ctx context.Context, req dto.BatchRescheduleRequest) (*dto.BatchResult, error)
	BatchReset(ctx context.Context, req dto.BatchResetRequest) (*dto.BatchResult, error)
}

// SessionHandler exposes session reads, status changes and reschedules.
type SessionHandler struct {
	sessions    sessionReader
	rescheduler sessionRescheduler
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions *service.SessionService, rescheduler *service.RescheduleService) *SessionHandler {
	return &SessionHandler{sessions: sessions, rescheduler: rescheduler}
}

// List godoc
// @Summary List sessions
// @Description Either semester_id or class_id is required. Each item carries its effective placement.
// @Tags Sessions
// @Produce json
// @Param semester_id query string false "Semester ID"
// @Param class_id query string false "Class offering ID"
// @Param session_type query string false "IN_PERSON or E_LEARNING"
// @Param category query string false "FIXED, EXTRA or ELEARNING"
// @Param status query string false "SCHEDULED, COMPLETED or CANCELLED"
// @Param rescheduled query bool false "Only rescheduled sessions"
// @Param pending query bool false "Only pending sessions"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	sessions, err := h.sessions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil, map[string]interface{}{"count": len(sessions)})
}

// Get godoc
// @Summary Get session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Reschedule godoc
// @Summary Reschedule session
// @Description Overlays a new date, slot and room. The original placement is kept.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RescheduleRequest true "Target placement"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/reschedule [put]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	session, err := h.rescheduler.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Reset godoc
// @Summary Reset session to its original placement
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/reset [post]
func (h *SessionHandler) Reset(c *gin.Context) {
	session, err := h.rescheduler.ResetToOriginal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// BatchReschedule godoc
// @Summary Reschedule several sessions
// @Description Items are applied independently; failures are reported per item.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.BatchRescheduleRequest true "Reschedule items"
// @Success 200 {object} response.Envelope
// @Router /sessions/reschedule/batch [post]
func (h *SessionHandler) BatchReschedule(c *gin.Context) {
	var req dto.BatchRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.rescheduler.BatchReschedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, batchMeta(result))
}

// BatchReset godoc
// @Summary Reset several sessions
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.BatchResetRequest true "Session IDs"
// @Success 200 {object} response.Envelope
// @Router /sessions/reset/batch [post]
func (h *SessionHandler) BatchReset(c *gin.Context) {
	var req dto.BatchResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.rescheduler.BatchReset(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, batchMeta(result))
}

// Complete godoc
// @Summary Mark session completed
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) Complete(c *gin.Context) {
	session, err := h.sessions.MarkCompleted(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Cancel godoc
// @Summary Cancel session
// @Description Cancelled sessions no longer block teachers, rooms or students.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CancelSessionRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req dto.CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
		return
	}
	session, err := h.sessions.MarkCancelled(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

func batchMeta(result *dto.BatchResult) map[string]interface{} {
	return map[string]interface{}{"succeeded": len(result.Succeeded), "failed": len(result.Failed)}
}

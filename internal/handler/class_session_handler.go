package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/service"
	"github.com/noah-isme/sma-session-scheduler/pkg/response"
)

type fixedSessionGenerator interface {
	CreateFixedSessions(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error)
	Regenerate(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error)
}

type classCalendarExporter interface {
	ExportClass(ctx context.Context, classID string) ([]byte, error)
}

// ClassSessionHandler generates and exports the sessions of a class offering.
type ClassSessionHandler struct {
	generator fixedSessionGenerator
	calendar  classCalendarExporter
}

// NewClassSessionHandler constructs the handler.
func NewClassSessionHandler(generator *service.FixedSessionService, calendar *service.SessionCalendarService) *ClassSessionHandler {
	return &ClassSessionHandler{generator: generator, calendar: calendar}
}

// Generate godoc
// @Summary Generate class sessions
// @Description Creates the fixed weekly run, the e-learning sessions and the pending extra sessions in one step.
// @Tags Class Sessions
// @Produce json
// @Param id path string true "Class offering ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-offerings/{id}/sessions [post]
func (h *ClassSessionHandler) Generate(c *gin.Context) {
	result, err := h.generator.CreateFixedSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Regenerate godoc
// @Summary Regenerate class sessions
// @Description Replaces every session of the class offering. Existing sessions survive a failed run.
// @Tags Class Sessions
// @Produce json
// @Param id path string true "Class offering ID"
// @Success 200 {object} response.Envelope
// @Router /class-offerings/{id}/sessions/regenerate [post]
func (h *ClassSessionHandler) Regenerate(c *gin.Context) {
	result, err := h.generator.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Calendar godoc
// @Summary Export class calendar
// @Tags Class Sessions
// @Produce text/calendar
// @Param id path string true "Class offering ID"
// @Success 200 {file} file
// @Router /class-offerings/{id}/calendar.ics [get]
func (h *ClassSessionHandler) Calendar(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.calendar.ExportClass(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, id+".ics", "text/calendar; charset=utf-8", payload)
}

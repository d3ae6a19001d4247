package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-session-scheduler/internal/dto"
	"github.com/noah-isme/sma-session-scheduler/internal/models"
	"github.com/noah-isme/sma-session-scheduler/internal/service"
	appErrors "github.com/noah-isme/sma-session-scheduler/pkg/errors"
	"github.com/noah-isme/sma-session-scheduler/pkg/response"
)

type roomQueries interface {
	OnlineRoom(ctx context.Context) (*models.Room, error)
	FindAvailableRooms(ctx context.Context, query dto.AvailableRoomsQuery) ([]models.Room, error)
	Utilization(ctx context.Context, roomID, semesterID string) (*dto.RoomUtilization, error)
}

type conflictChecker interface {
	Check(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictCheckResponse, error)
}

// RoomHandler exposes room availability and conflict checks.
type RoomHandler struct {
	rooms     roomQueries
	conflicts conflictChecker
}

// NewRoomHandler constructs the handler.
func NewRoomHandler(rooms *service.RoomService, conflicts *service.ConflictService) *RoomHandler {
	return &RoomHandler{rooms: rooms, conflicts: conflicts}
}

// Available godoc
// @Summary List free rooms
// @Tags Rooms
// @Produce json
// @Param semester_id query string true "Semester ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param time_slot query string true "CA1 to CA5"
// @Param min_capacity query int false "Minimum seats"
// @Success 200 {object} response.Envelope
// @Router /rooms/available [get]
func (h *RoomHandler) Available(c *gin.Context) {
	var query dto.AvailableRoomsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	rooms, err := h.rooms.FindAvailableRooms(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Online godoc
// @Summary Get the online room
// @Tags Rooms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms/online [get]
func (h *RoomHandler) Online(c *gin.Context) {
	room, err := h.rooms.OnlineRoom(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Utilization godoc
// @Summary Room utilization within a semester
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Param semester_id query string true "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/utilization [get]
func (h *RoomHandler) Utilization(c *gin.Context) {
	semesterID := c.Query("semester_id")
	if semesterID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester_id is required"))
		return
	}
	result, err := h.rooms.Utilization(c.Request.Context(), c.Param("id"), semesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CheckConflicts godoc
// @Summary Check a placement for conflicts
// @Tags Rooms
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Candidate placement"
// @Success 200 {object} response.Envelope
// @Router /conflicts/check [post]
func (h *RoomHandler) CheckConflicts(c *gin.Context) {
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict check payload"))
		return
	}
	result, err := h.conflicts.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

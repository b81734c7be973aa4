package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/pkg/response"
)

// IdempotencyHeader carries the client's submission key.
const IdempotencyHeader = "Idempotency-Key"

type attendanceService interface {
	Submit(ctx context.Context, actor models.Actor, req dto.SubmitAttendanceRequest, idempotencyKey string) (*dto.AttendanceResult, error)
	Get(ctx context.Context, actor models.Actor, groupID, date string) (*models.AttendanceRecord, error)
	Quota(ctx context.Context, actor models.Actor, groupID, date string) (*dto.QuotaView, error)
	Clear(ctx context.Context, actor models.Actor, date string) (*dto.ClearAttendanceResult, error)
}

// AttendanceHandler exposes headcount and reinforcement endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Get godoc
// @Summary Get the caller's attendance record
// @Tags Attendance
// @Produce json
// @Param groupId query string true "Group ID"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rec, err := h.service.Get(c.Request.Context(), actor, c.Query("groupId"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rec)
}

// Quota godoc
// @Summary Reinforcement quota for a group
// @Tags Attendance
// @Produce json
// @Param groupId query string true "Group ID"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/quota [get]
func (h *AttendanceHandler) Quota(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.Quota(c.Request.Context(), actor, c.Query("groupId"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Submit godoc
// @Summary Save headcount and consume reinforcements
// @Tags Attendance
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param payload body dto.SubmitAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), actor, req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Clear godoc
// @Summary Delete every attendance record of a day
// @Tags Attendance
// @Produce json
// @Param date query string false "Day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [delete]
func (h *AttendanceHandler) Clear(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Clear(c.Request.Context(), actor, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/internal/service"
	"github.com/noah-isme/meal-queue-api/pkg/response"
)

type mealService interface {
	Today(ctx context.Context, actor models.Actor) (*service.TodayView, error)
	Register(ctx context.Context, actor models.Actor, req dto.RegisterMealRequest) (*service.BoardEntry, error)
	Enter(ctx context.Context, actor models.Actor, id string) (*service.BoardEntry, error)
}

type reconciliationService interface {
	DeleteOne(ctx context.Context, actor models.Actor, registrationID string) (*service.DeleteResult, error)
	DeleteAllForRegistrant(ctx context.Context, actor models.Actor, registrantID string) (*service.BulkDeleteResult, error)
	DeleteAll(ctx context.Context, actor models.Actor) (*service.BulkDeleteResult, error)
}

type boardSnapshotter interface {
	Snapshot() service.BoardSnapshot
}

// MealHandler exposes the meal queue.
type MealHandler struct {
	meals     mealService
	reconcile reconciliationService
	board     boardSnapshotter
}

// NewMealHandler constructs a meal handler. board may be nil when the scheduler is disabled.
func NewMealHandler(meals mealService, reconcile reconciliationService, board boardSnapshotter) *MealHandler {
	return &MealHandler{meals: meals, reconcile: reconcile, board: board}
}

// Today godoc
// @Summary Today's meal registrations with derived status
// @Tags Meals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meals/today [get]
func (h *MealHandler) Today(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.meals.Today(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Board godoc
// @Summary Latest queue board snapshot
// @Tags Meals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meals/board [get]
func (h *MealHandler) Board(c *gin.Context) {
	if h.board == nil {
		c.JSON(http.StatusServiceUnavailable, response.Envelope{Data: gin.H{"status": "board disabled"}})
		return
	}
	response.JSON(c, http.StatusOK, h.board.Snapshot())
}

// Register godoc
// @Summary Register for a group's meal
// @Tags Meals
// @Accept json
// @Produce json
// @Param payload body dto.RegisterMealRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Router /meals [post]
func (h *MealHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RegisterMealRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.meals.Register(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Enter godoc
// @Summary Mark a registration as eating
// @Tags Meals
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /meals/{id}/enter [post]
func (h *MealHandler) Enter(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entry, err := h.meals.Enter(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Delete godoc
// @Summary Delete a registration and its attendance
// @Tags Meals
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /meals/{id} [delete]
func (h *MealHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.reconcile.DeleteOne(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// DeleteMine godoc
// @Summary Delete the caller's registrations for today
// @Tags Meals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meals/mine [delete]
func (h *MealHandler) DeleteMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	h.bulkResult(c, func() (*service.BulkDeleteResult, error) {
		return h.reconcile.DeleteAllForRegistrant(c.Request.Context(), actor, actor.ID)
	})
}

// DeleteForRegistrant godoc
// @Summary Delete a registrant's registrations for today
// @Tags Meals
// @Produce json
// @Param registrantId path string true "Registrant ID"
// @Success 200 {object} response.Envelope
// @Router /meals/registrants/{registrantId} [delete]
func (h *MealHandler) DeleteForRegistrant(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	h.bulkResult(c, func() (*service.BulkDeleteResult, error) {
		return h.reconcile.DeleteAllForRegistrant(c.Request.Context(), actor, c.Param("registrantId"))
	})
}

// DeleteAll godoc
// @Summary Clear today's meal queue
// @Tags Meals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meals [delete]
func (h *MealHandler) DeleteAll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	h.bulkResult(c, func() (*service.BulkDeleteResult, error) {
		return h.reconcile.DeleteAll(c.Request.Context(), actor)
	})
}

// bulkResult answers 207 when some registrations failed so partial failure is visible.
func (h *MealHandler) bulkResult(c *gin.Context, run func() (*service.BulkDeleteResult, error)) {
	result, err := run()
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	response.JSON(c, status, result)
}

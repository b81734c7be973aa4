package dto

// RegisterMealRequest queues the caller for a group's meal slot.
type RegisterMealRequest struct {
	Group string `json:"group" validate:"required"`
}

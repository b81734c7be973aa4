package dto

// GroupRequest is the create/update payload for a group.
type GroupRequest struct {
	Name                  string  `json:"name" validate:"required,max=80"`
	Category              string  `json:"category" validate:"required,group_category"`
	MaxReinforcements     *int    `json:"maxReinforcements" validate:"required,min=0"`
	Description           *string `json:"description" validate:"omitempty,max=255"`
	EatingDurationMinutes *int    `json:"eatingDurationMinutes" validate:"omitempty,min=1,max=240"`
}

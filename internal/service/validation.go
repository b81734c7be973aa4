package service

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

// NewValidator returns a validator with the domain tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("group_category", func(fl validator.FieldLevel) bool {
		return models.GroupCategory(fl.Field().String()).Valid()
	})
	return v
}

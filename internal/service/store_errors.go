package service

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/meal-queue-api/internal/repository"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

// storeError maps repository failures onto the application taxonomy.
func storeError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", resource))
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s was modified concurrently; reload and retry", resource))
	default:
		return appErrors.Persistence(err, fmt.Sprintf("failed to access %s", resource))
	}
}

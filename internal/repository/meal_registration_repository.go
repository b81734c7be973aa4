package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

const mealRegistrationColumns = `id, registrant_id, registrant_name, registrant_code, group_name, date, registered_at, entered_at, status`

// MealRegistrationRepository persists meal queue registrations.
type MealRegistrationRepository struct {
	db queryer
}

// NewMealRegistrationRepository constructs the repository.
func NewMealRegistrationRepository(db *sqlx.DB) *MealRegistrationRepository {
	return &MealRegistrationRepository{db: db}
}

func (r *MealRegistrationRepository) with(q queryer) *MealRegistrationRepository {
	return &MealRegistrationRepository{db: q}
}

// ListByDate returns the registrations of a calendar day, newest first.
func (r *MealRegistrationRepository) ListByDate(ctx context.Context, day time.Time) ([]models.MealRegistration, error) {
	query := fmt.Sprintf(`SELECT %s FROM meal_registrations WHERE date = $1 ORDER BY registered_at DESC`, mealRegistrationColumns)
	var regs []models.MealRegistration
	if err := r.db.SelectContext(ctx, &regs, query, day); err != nil {
		return nil, fmt.Errorf("list meal registrations: %w", err)
	}
	return regs, nil
}

// FindByID fetches a registration; sql.ErrNoRows is returned unwrapped when absent.
func (r *MealRegistrationRepository) FindByID(ctx context.Context, id string) (*models.MealRegistration, error) {
	query := fmt.Sprintf(`SELECT %s FROM meal_registrations WHERE id = $1`, mealRegistrationColumns)
	var reg models.MealRegistration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Create inserts a registration.
func (r *MealRegistrationRepository) Create(ctx context.Context, reg *models.MealRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	query := `INSERT INTO meal_registrations (id, registrant_id, registrant_name, registrant_code, group_name, date, registered_at, entered_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, reg.ID, reg.RegistrantID, reg.RegistrantName, reg.RegistrantCode, reg.Group, reg.Date, reg.RegisteredAt, reg.EnteredAt, reg.Status); err != nil {
		return fmt.Errorf("create meal registration: %w", err)
	}
	return nil
}

// MarkEntered stamps the entry time once. sql.ErrNoRows is returned when the
// registration is missing or has already entered.
func (r *MealRegistrationRepository) MarkEntered(ctx context.Context, id string, enteredAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE meal_registrations SET entered_at = $2, status = $3 WHERE id = $1 AND entered_at IS NULL`, id, enteredAt, models.MealStatusEating)
	if err != nil {
		return fmt.Errorf("mark meal registration entered: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("mark meal registration entered: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a registration. sql.ErrNoRows is returned when nothing matched.
func (r *MealRegistrationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meal_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete meal registration: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("delete meal registration: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

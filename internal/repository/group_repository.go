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

const groupColumns = `id, name, category, max_reinforcements, description, eating_duration_minutes, created_at, updated_at`

// GroupRepository persists the group catalog.
type GroupRepository struct {
	db queryer
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns every group ordered by category then name.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups ORDER BY category ASC, name ASC`, groupColumns)
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// FindByID fetches a group; sql.ErrNoRows is returned unwrapped when absent.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	query := fmt.Sprintf(`SELECT %s FROM groups WHERE id = $1`, groupColumns)
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// ExistsByName checks name uniqueness, ignoring excludeID.
func (r *GroupRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM groups WHERE name = $1 AND id <> $2)`, name, excludeID); err != nil {
		return false, fmt.Errorf("check group name: %w", err)
	}
	return exists, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	query := `INSERT INTO groups (id, name, category, max_reinforcements, description, eating_duration_minutes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.Category, group.MaxReinforcements, group.Description, group.EatingDurationMinutes, group.CreatedAt, group.UpdatedAt); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update overwrites the mutable group fields.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	query := `UPDATE groups SET name = $2, category = $3, max_reinforcements = $4, description = $5, eating_duration_minutes = $6, updated_at = $7 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, group.ID, group.Name, group.Category, group.MaxReinforcements, group.Description, group.EatingDurationMinutes, group.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

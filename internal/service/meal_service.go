package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

type mealStore interface {
	Today() time.Time
	TodayRegistrations(ctx context.Context) ([]models.MealRegistration, error)
	FindRegistration(ctx context.Context, id string) (*models.MealRegistration, error)
	CreateRegistration(ctx context.Context, reg *models.MealRegistration) error
	MarkRegistrationEntered(ctx context.Context, id string, enteredAt time.Time) error
}

type groupCatalogProvider interface {
	Catalog(ctx context.Context) (models.GroupCatalog, error)
}

// TodayView is the annotated registration list of the active day.
type TodayView struct {
	Entries []BoardEntry `json:"entries"`
	Stats   BoardStats   `json:"stats"`
	Mine    int          `json:"mine"`
	AsOf    time.Time    `json:"asOf"`
}

// MealService handles registration and entry into the dining room.
type MealService struct {
	store     mealStore
	groups    groupCatalogProvider
	engine    StatusEngine
	validator *validator.Validate
	logger    *zap.Logger
	clock     func() time.Time
}

// NewMealService constructs the meal service.
func NewMealService(store mealStore, groups groupCatalogProvider, engine StatusEngine, validate *validator.Validate, logger *zap.Logger) *MealService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MealService{store: store, groups: groups, engine: engine, validator: validate, logger: logger, clock: time.Now}
}

// Today annotates the active day's registrations with their derived status.
func (s *MealService) Today(ctx context.Context, actor models.Actor) (*TodayView, error) {
	regs, err := s.store.TodayRegistrations(ctx)
	if err != nil {
		return nil, storeError(err, "meal registrations")
	}
	catalog, err := s.groups.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	entries, stats := s.engine.Annotate(regs, catalog, now)
	mine := 0
	for _, reg := range regs {
		if reg.RegistrantID == actor.ID {
			mine++
		}
	}
	return &TodayView{Entries: entries, Stats: stats, Mine: mine, AsOf: now.UTC()}, nil
}

// Register queues the actor for a group's meal. A registrant may hold only one
// unfinished registration per group per day.
func (s *MealService) Register(ctx context.Context, actor models.Actor, req dto.RegisterMealRequest) (*BoardEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meal registration payload")
	}
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing registrant")
	}
	catalog, err := s.groups.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Group)
	group := catalog.ByName(name)
	if group == nil {
		return nil, appErrors.Validation("unknown group " + name)
	}

	regs, err := s.store.TodayRegistrations(ctx)
	if err != nil {
		return nil, storeError(err, "meal registrations")
	}
	now := s.clock()
	for _, existing := range regs {
		if existing.RegistrantID != actor.ID || existing.Group != group.Name {
			continue
		}
		if s.engine.Derive(existing, group, now).State != models.MealStatusFinished {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this group")
		}
	}

	reg := &models.MealRegistration{
		RegistrantID:   actor.ID,
		RegistrantName: actor.Name,
		RegistrantCode: actor.Code,
		Group:          group.Name,
		Date:           s.store.Today(),
		RegisteredAt:   now.UTC(),
		Status:         models.MealStatusRegistered,
	}
	if err := s.store.CreateRegistration(ctx, reg); err != nil {
		return nil, storeError(err, "meal registration")
	}
	s.logger.Info("meal registration created", zap.String("registration_id", reg.ID), zap.String("group", reg.Group), zap.String("registrant_id", reg.RegistrantID))

	entry := s.engine.Entry(*reg, group, now)
	return &entry, nil
}

// Enter marks the moment a registration begins eating.
func (s *MealService) Enter(ctx context.Context, actor models.Actor, id string) (*BoardEntry, error) {
	reg, err := s.store.FindRegistration(ctx, id)
	if err != nil {
		return nil, storeError(err, "meal registration")
	}
	if err := authorizeOwner(actor, reg.RegistrantID); err != nil {
		return nil, err
	}
	if reg.EnteredAt != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "meal registration already entered")
	}

	now := s.clock().UTC()
	if now.Before(reg.RegisteredAt) {
		now = reg.RegisteredAt
	}
	if err := s.store.MarkRegistrationEntered(ctx, reg.ID, now); err != nil {
		if errors.Is(storeError(err, "meal registration"), appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "meal registration already entered")
		}
		return nil, storeError(err, "meal registration")
	}
	reg.EnteredAt = &now
	reg.Status = models.MealStatusEating

	catalog, err := s.groups.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	entry := s.engine.Entry(*reg, catalog.ByName(reg.Group), now)
	return &entry, nil
}

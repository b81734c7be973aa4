package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

const (
	groupsCacheKey     = "groups:catalog"
	groupsCachePattern = "groups:*"
)

type groupRepository interface {
	List(ctx context.Context) ([]models.Group, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
}

type groupCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// GroupService manages the group catalog.
type GroupService struct {
	repo      groupRepository
	cache     groupCache
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the group service. cache may be nil.
func NewGroupService(repo groupRepository, cache groupCache, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

// List returns the catalog, served from cache when possible.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	if s.cache != nil {
		var cached []models.Group
		if hit, err := s.cache.Get(ctx, groupsCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, storeError(err, "groups")
	}
	if groups == nil {
		groups = []models.Group{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, groupsCacheKey, groups, s.ttl)
	}
	return groups, nil
}

// Catalog indexes the current group listing.
func (s *GroupService) Catalog(ctx context.Context) (models.GroupCatalog, error) {
	groups, err := s.List(ctx)
	if err != nil {
		return models.GroupCatalog{}, err
	}
	return models.NewGroupCatalog(groups), nil
}

// Get fetches one group by id.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Validation("group id is required")
	}
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "group")
	}
	return group, nil
}

// Create adds a group to the catalog.
func (s *GroupService) Create(ctx context.Context, req dto.GroupRequest) (*models.Group, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:                  name,
		Category:              models.GroupCategory(req.Category),
		MaxReinforcements:     *req.MaxReinforcements,
		Description:           req.Description,
		EatingDurationMinutes: req.EatingDurationMinutes,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, storeError(err, "group")
	}
	s.invalidate(ctx)
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("name", group.Name))
	return group, nil
}

// Update replaces a group's mutable fields.
func (s *GroupService) Update(ctx context.Context, id string, req dto.GroupRequest) (*models.Group, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, id); err != nil {
		return nil, err
	}

	group.Name = name
	group.Category = models.GroupCategory(req.Category)
	group.MaxReinforcements = *req.MaxReinforcements
	group.Description = req.Description
	group.EatingDurationMinutes = req.EatingDurationMinutes
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, storeError(err, "group")
	}
	s.invalidate(ctx)
	return group, nil
}

func (s *GroupService) validate(req dto.GroupRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	return nil
}

func (s *GroupService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return storeError(err, "group")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "group name already exists")
	}
	return nil
}

func (s *GroupService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, groupsCachePattern); err != nil {
		s.logger.Warn("group cache invalidation failed", zap.Error(err))
	}
}

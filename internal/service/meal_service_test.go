package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

type mealStoreStub struct {
	regs    []models.MealRegistration
	listErr error
}

func (s *mealStoreStub) Today() time.Time { return serviceDay }

func (s *mealStoreStub) TodayRegistrations(ctx context.Context) ([]models.MealRegistration, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.MealRegistration(nil), s.regs...), nil
}

func (s *mealStoreStub) FindRegistration(ctx context.Context, id string) (*models.MealRegistration, error) {
	for i := range s.regs {
		if s.regs[i].ID == id {
			reg := s.regs[i]
			return &reg, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *mealStoreStub) CreateRegistration(ctx context.Context, reg *models.MealRegistration) error {
	reg.ID = "reg-new"
	s.regs = append(s.regs, *reg)
	return nil
}

func (s *mealStoreStub) MarkRegistrationEntered(ctx context.Context, id string, enteredAt time.Time) error {
	for i := range s.regs {
		if s.regs[i].ID == id && s.regs[i].EnteredAt == nil {
			s.regs[i].EnteredAt = &enteredAt
			s.regs[i].Status = models.MealStatusEating
			return nil
		}
	}
	return sql.ErrNoRows
}

type groupCatalogStub struct {
	groups []models.Group
	err    error
}

func (s groupCatalogStub) Catalog(ctx context.Context) (models.GroupCatalog, error) {
	if s.err != nil {
		return models.GroupCatalog{}, s.err
	}
	return models.NewGroupCatalog(s.groups), nil
}

var mealNow = time.Date(2024, 3, 4, 12, 30, 0, 0, time.UTC)

func newMealFixture(regs ...models.MealRegistration) (*MealService, *mealStoreStub) {
	store := &mealStoreStub{regs: regs}
	groups := groupCatalogStub{groups: []models.Group{
		{ID: "g-3a", Name: "3A", Category: models.GroupCategoryElementary, MaxReinforcements: 5},
	}}
	svc := NewMealService(store, groups, NewStatusEngine(20*time.Minute), nil, nil)
	svc.clock = func() time.Time { return mealNow }
	return svc, store
}

func TestMealRegisterCreatesWaitingEntry(t *testing.T) {
	svc, store := newMealFixture()

	entry, err := svc.Register(context.Background(), models.Actor{ID: "teacher-1", Name: "Ana", Code: "T-01", Role: models.RoleTeacher}, dto.RegisterMealRequest{Group: " 3A "})
	require.NoError(t, err)
	assert.Equal(t, models.MealStatusRegistered, entry.Derived.State)
	assert.Equal(t, "g-3a", entry.GroupID)
	assert.Equal(t, serviceDay, entry.Date)
	assert.Equal(t, "Ana", entry.RegistrantName)
	require.Len(t, store.regs, 1)
}

func TestMealRegisterRejectsUnknownGroupAndDuplicates(t *testing.T) {
	svc, _ := newMealFixture(models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-1", Group: "3A", RegisteredAt: mealNow.Add(-time.Minute)})

	_, err := svc.Register(context.Background(), teacherOne, dto.RegisterMealRequest{Group: "9Z"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Register(context.Background(), teacherOne, dto.RegisterMealRequest{Group: "3A"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Register(context.Background(), teacherOne, dto.RegisterMealRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestMealRegisterAllowsNewSlotAfterFinishing(t *testing.T) {
	entered := mealNow.Add(-30 * time.Minute)
	svc, store := newMealFixture(models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-1", Group: "3A", RegisteredAt: entered.Add(-time.Minute), EnteredAt: &entered})

	_, err := svc.Register(context.Background(), teacherOne, dto.RegisterMealRequest{Group: "3A"})
	require.NoError(t, err)
	assert.Len(t, store.regs, 2)
}

func TestMealEnterStampsOnce(t *testing.T) {
	svc, store := newMealFixture(models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-1", Group: "3A", RegisteredAt: mealNow.Add(-5 * time.Minute)})

	entry, err := svc.Enter(context.Background(), teacherOne, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, models.MealStatusEating, entry.Derived.State)
	require.NotNil(t, entry.Derived.RemainingMinutes)
	assert.Equal(t, 20, *entry.Derived.RemainingMinutes)
	require.NotNil(t, store.regs[0].EnteredAt)

	_, err = svc.Enter(context.Background(), teacherOne, "reg-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestMealEnterNeverPrecedesRegistration(t *testing.T) {
	svc, store := newMealFixture(models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-1", Group: "3A", RegisteredAt: mealNow.Add(time.Minute)})

	_, err := svc.Enter(context.Background(), teacherOne, "reg-1")
	require.NoError(t, err)
	assert.True(t, store.regs[0].EnteredAt.Equal(store.regs[0].RegisteredAt))
}

func TestMealEnterOwnership(t *testing.T) {
	svc, _ := newMealFixture(models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-2", Group: "3A", RegisteredAt: mealNow})

	_, err := svc.Enter(context.Background(), teacherOne, "reg-1")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Enter(context.Background(), admin, "reg-1")
	assert.NoError(t, err)

	_, err = svc.Enter(context.Background(), admin, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestMealTodayCountsOwnRegistrations(t *testing.T) {
	entered := mealNow.Add(-5 * time.Minute)
	svc, _ := newMealFixture(
		models.MealRegistration{ID: "reg-1", RegistrantID: "teacher-1", Group: "3A", RegisteredAt: mealNow.Add(-10 * time.Minute), EnteredAt: &entered},
		models.MealRegistration{ID: "reg-2", RegistrantID: "teacher-2", Group: "3A", RegisteredAt: mealNow.Add(-2 * time.Minute)},
		models.MealRegistration{ID: "reg-3", RegistrantID: "teacher-1", Group: "Old", RegisteredAt: mealNow.Add(-time.Minute), EnteredAt: &entered},
	)

	view, err := svc.Today(context.Background(), teacherOne)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Mine)
	assert.Equal(t, BoardStats{Total: 3, Registered: 1, Eating: 1, Unknown: 1}, view.Stats)
	assert.Equal(t, "reg-3", view.Entries[0].ID)
}

func TestMealTodayStoreFailure(t *testing.T) {
	svc, store := newMealFixture()
	store.listErr = errors.New("timeout")

	_, err := svc.Today(context.Background(), teacherOne)
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
}

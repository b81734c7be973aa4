package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/internal/repository"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

// Cascade outcomes reported to metrics.
const (
	CascadeDeleted = "deleted"
	CascadeSkipped = "skipped"
	CascadeFailed  = "failed"
)

type reconciliationStore interface {
	TodayRegistrations(ctx context.Context) ([]models.MealRegistration, error)
	AllGroups(ctx context.Context) ([]models.Group, error)
	FindRegistration(ctx context.Context, id string) (*models.MealRegistration, error)
	DeleteRegistration(ctx context.Context, id string) error
	DeleteAttendanceByRegistrantGroupDate(ctx context.Context, registrantID, groupID string, date time.Time) (int, error)
}

type cascadeTransactor interface {
	InTx(ctx context.Context, fn func(tx repository.CascadeWriter) error) error
}

type cascadeRecorder interface {
	RecordCascadeDelete(outcome string, attendance int)
}

// DeleteResult reports a single-registration cascade.
type DeleteResult struct {
	RegistrationID    string `json:"registrationId"`
	DeletedAttendance int    `json:"deletedAttendance"`
}

// DeleteFailure names a registration whose cascade failed.
type DeleteFailure struct {
	RegistrationID string `json:"registrationId"`
	Reason         string `json:"reason"`
}

// BulkDeleteResult accounts for every registration a bulk delete touched.
type BulkDeleteResult struct {
	Requested            int             `json:"requested"`
	DeletedRegistrations int             `json:"deletedRegistrations"`
	DeletedAttendance    int             `json:"deletedAttendance"`
	Skipped              int             `json:"skipped"`
	Failed               int             `json:"failed"`
	Failures             []DeleteFailure `json:"failures"`
}

// ReconciliationService deletes registrations together with the attendance
// rows that belong to them.
type ReconciliationService struct {
	store   reconciliationStore
	metrics cascadeRecorder
	logger  *zap.Logger
}

// NewReconciliationService constructs the coordinator.
func NewReconciliationService(store reconciliationStore, metrics cascadeRecorder, logger *zap.Logger) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{store: store, metrics: metrics, logger: logger}
}

// DeleteOne removes one registration and its attendance. Teachers may only
// remove their own registrations.
func (s *ReconciliationService) DeleteOne(ctx context.Context, actor models.Actor, registrationID string) (*DeleteResult, error) {
	if registrationID == "" {
		return nil, appErrors.Validation("registration id is required")
	}
	reg, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, storeError(err, "meal registration")
	}
	if err := authorizeOwner(actor, reg.RegistrantID); err != nil {
		return nil, err
	}

	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := s.cascade(ctx, catalog, *reg)
	if err != nil {
		s.record(outcomeOf(err), 0)
		return nil, storeError(err, "meal registration")
	}
	s.record(CascadeDeleted, deleted)
	s.logger.Info("meal registration deleted",
		zap.String("registration_id", reg.ID),
		zap.String("actor_id", actor.ID),
		zap.Int("deleted_attendance", deleted),
	)
	return &DeleteResult{RegistrationID: reg.ID, DeletedAttendance: deleted}, nil
}

// DeleteAllForRegistrant removes a registrant's registrations for the active day.
func (s *ReconciliationService) DeleteAllForRegistrant(ctx context.Context, actor models.Actor, registrantID string) (*BulkDeleteResult, error) {
	if registrantID == "" {
		return nil, appErrors.Validation("registrant id is required")
	}
	if err := authorizeOwner(actor, registrantID); err != nil {
		return nil, err
	}
	regs, err := s.store.TodayRegistrations(ctx)
	if err != nil {
		return nil, storeError(err, "meal registrations")
	}
	var owned []models.MealRegistration
	for _, reg := range regs {
		if reg.RegistrantID == registrantID {
			owned = append(owned, reg)
		}
	}
	return s.bulk(ctx, actor, owned)
}

// DeleteAll removes every registration of the active day. Administrators only.
func (s *ReconciliationService) DeleteAll(ctx context.Context, actor models.Actor) (*BulkDeleteResult, error) {
	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleTeacher:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can clear the meal queue")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unrecognised role")
	}
	regs, err := s.store.TodayRegistrations(ctx)
	if err != nil {
		return nil, storeError(err, "meal registrations")
	}
	return s.bulk(ctx, actor, regs)
}

func (s *ReconciliationService) bulk(ctx context.Context, actor models.Actor, regs []models.MealRegistration) (*BulkDeleteResult, error) {
	result := &BulkDeleteResult{Requested: len(regs), Failures: []DeleteFailure{}}
	if len(regs) == 0 {
		return result, nil
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	for _, reg := range regs {
		if err := ctx.Err(); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, DeleteFailure{RegistrationID: reg.ID, Reason: err.Error()})
			continue
		}
		deleted, err := s.cascade(ctx, catalog, reg)
		switch outcome := outcomeOf(err); outcome {
		case CascadeDeleted:
			result.DeletedRegistrations++
			result.DeletedAttendance += deleted
			s.record(outcome, deleted)
		case CascadeSkipped:
			result.Skipped++
			s.record(outcome, 0)
		default:
			result.Failed++
			result.Failures = append(result.Failures, DeleteFailure{RegistrationID: reg.ID, Reason: err.Error()})
			s.record(outcome, 0)
			s.logger.Warn("meal registration cascade failed", zap.String("registration_id", reg.ID), zap.Error(err))
		}
	}

	s.logger.Info("meal registrations bulk deleted",
		zap.String("actor_id", actor.ID),
		zap.Int("requested", result.Requested),
		zap.Int("deleted", result.DeletedRegistrations),
		zap.Int("deleted_attendance", result.DeletedAttendance),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// cascade deletes the registration's attendance rows, then the registration.
// Registrations whose group is not in the catalog lose only the registration.
func (s *ReconciliationService) cascade(ctx context.Context, catalog models.GroupCatalog, reg models.MealRegistration) (int, error) {
	run := func(w repository.CascadeWriter) (int, error) {
		deleted := 0
		if group := catalog.ByName(reg.Group); group != nil {
			n, err := w.DeleteAttendanceByRegistrantGroupDate(ctx, reg.RegistrantID, group.ID, reg.Date)
			if err != nil {
				return 0, err
			}
			deleted = n
		}
		if err := w.DeleteRegistration(ctx, reg.ID); err != nil {
			return 0, err
		}
		return deleted, nil
	}

	tx, ok := s.store.(cascadeTransactor)
	if !ok {
		return run(s.store)
	}
	var deleted int
	err := tx.InTx(ctx, func(w repository.CascadeWriter) error {
		n, err := run(w)
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *ReconciliationService) catalog(ctx context.Context) (models.GroupCatalog, error) {
	groups, err := s.store.AllGroups(ctx)
	if err != nil {
		return models.GroupCatalog{}, storeError(err, "groups")
	}
	return models.NewGroupCatalog(groups), nil
}

func (s *ReconciliationService) record(outcome string, attendance int) {
	if s.metrics != nil {
		s.metrics.RecordCascadeDelete(outcome, attendance)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return CascadeDeleted
	case errors.Is(storeError(err, "meal registration"), appErrors.ErrNotFound):
		return CascadeSkipped
	default:
		return CascadeFailed
	}
}

// authorizeOwner lets administrators act on anyone and teachers on themselves.
func authorizeOwner(actor models.Actor, registrantID string) error {
	switch actor.Role {
	case models.RoleAdministrator:
		return nil
	case models.RoleTeacher:
		if actor.ID != "" && actor.ID == registrantID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "teachers can only manage their own meal registrations")
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "unrecognised role")
	}
}

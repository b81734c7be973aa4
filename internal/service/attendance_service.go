package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/internal/repository"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

type attendanceStore interface {
	Today() time.Time
	GetAttendanceRecord(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error)
	CreateAttendanceRecord(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
	UpdateAttendanceRecord(ctx context.Context, id string, upd models.AttendanceUpdate) (*models.AttendanceRecord, error)
	DeleteAttendanceByDate(ctx context.Context, day time.Time) (int, error)
}

type groupLookup interface {
	Get(ctx context.Context, id string) (*models.Group, error)
}

type idempotencyGuard interface {
	Claim(ctx context.Context, key, fingerprint string) (bool, error)
	Lookup(ctx context.Context, key string) (*repository.IdempotencyEntry, error)
	Complete(ctx context.Context, key, fingerprint string, result []byte) error
	Release(ctx context.Context, key string) error
}

type quotaRecorder interface {
	RecordQuotaRejection(group string)
}

// AttendanceService saves headcounts and reinforcement consumption.
type AttendanceService struct {
	store       attendanceStore
	groups      groupLookup
	idempotency idempotencyGuard
	ledger      QuotaLedger
	metrics     quotaRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service. idempotency and metrics may be nil.
func NewAttendanceService(store attendanceStore, groups groupLookup, idempotency idempotencyGuard, metrics quotaRecorder, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		store:       store,
		groups:      groups,
		idempotency: idempotency,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Submit validates and persists a headcount, adding the requested
// reinforcements to the day's cumulative total. A repeated idempotency key
// returns the committed result of the first submission without applying the
// delta again; reusing a key for a different payload is a conflict.
func (s *AttendanceService) Submit(ctx context.Context, actor models.Actor, req dto.SubmitAttendanceRequest, idempotencyKey string) (*dto.AttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if actor.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing registrant")
	}
	day, err := s.resolveDay(req.Date)
	if err != nil {
		return nil, err
	}
	sub := Submission{
		Headcount:          CompleteHeadcount(*req.StudentsPresent, *req.StudentsEating, req.StudentsNotEating),
		ReinforcementDelta: req.Reinforcements,
	}
	if err := s.ledger.ValidateHeadcount(sub.Headcount); err != nil {
		return nil, err
	}
	if sub.ReinforcementDelta < 0 {
		return nil, appErrors.Validation("reinforcements cannot be negative")
	}
	group, err := s.groups.Get(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	key := models.AttendanceKey{RegistrantID: actor.ID, GroupID: group.ID, Date: day}

	claimKey := ""
	fingerprint := submissionFingerprint(key, sub)
	if idempotencyKey = strings.TrimSpace(idempotencyKey); idempotencyKey != "" && s.idempotency != nil {
		scoped := actor.ID + ":" + idempotencyKey
		claimed, err := s.idempotency.Claim(ctx, scoped, fingerprint)
		switch {
		case err != nil:
			s.logger.Warn("idempotency claim failed; continuing without it", zap.Error(err))
		case !claimed:
			return s.replay(ctx, scoped, fingerprint)
		default:
			claimKey = scoped
		}
	}

	result, err := s.apply(ctx, actor, *group, key, sub)
	if claimKey == "" {
		return result, err
	}
	if err != nil {
		if releaseErr := s.idempotency.Release(ctx, claimKey); releaseErr != nil {
			s.logger.Warn("idempotency release failed", zap.Error(releaseErr))
		}
		return nil, err
	}
	s.complete(ctx, claimKey, fingerprint, result)
	return result, nil
}

func (s *AttendanceService) apply(ctx context.Context, actor models.Actor, group models.Group, key models.AttendanceKey, sub Submission) (*dto.AttendanceResult, error) {
	existing, err := s.store.GetAttendanceRecord(ctx, key)
	if err != nil {
		return nil, storeError(err, "attendance record")
	}
	used := 0
	if existing != nil {
		used = existing.ReinforcementsUsed
	}

	alloc, err := s.ledger.Apply(group, used, sub)
	if err != nil {
		if errors.Is(err, appErrors.ErrQuotaExceeded) && s.metrics != nil {
			s.metrics.RecordQuotaRejection(group.Name)
		}
		return nil, err
	}

	var saved *models.AttendanceRecord
	if existing == nil {
		saved, err = s.store.CreateAttendanceRecord(ctx, &models.AttendanceRecord{
			RegistrantID:       actor.ID,
			RegistrantName:     actor.Name,
			GroupID:            group.ID,
			GroupName:          group.Name,
			GroupCategory:      group.Category,
			Date:               key.Date,
			StudentsPresent:    alloc.Headcount.Present,
			StudentsEating:     alloc.Headcount.Eating,
			StudentsNotEating:  alloc.Headcount.NotEating,
			ReinforcementsUsed: alloc.ReinforcementsUsed,
		})
	} else {
		saved, err = s.store.UpdateAttendanceRecord(ctx, existing.ID, models.AttendanceUpdate{
			Headcount:          alloc.Headcount,
			ReinforcementsUsed: alloc.ReinforcementsUsed,
			ExpectedVersion:    existing.Version,
		})
	}
	if err != nil {
		return nil, storeError(err, "attendance record")
	}

	s.logger.Info("attendance saved",
		zap.String("record_id", saved.ID),
		zap.String("group", group.Name),
		zap.Int("reinforcements_used", saved.ReinforcementsUsed),
		zap.Int("version", saved.Version),
	)
	return &dto.AttendanceResult{Record: saved, Available: s.ledger.Available(group, saved.ReinforcementsUsed)}, nil
}

// complete stores the committed result under the claimed key. On failure the
// key stays pending until it expires, so retries are refused rather than re-applied.
func (s *AttendanceService) complete(ctx context.Context, claimKey, fingerprint string, result *dto.AttendanceResult) {
	body, err := json.Marshal(result)
	if err == nil {
		err = s.idempotency.Complete(ctx, claimKey, fingerprint, body)
	}
	if err != nil {
		s.logger.Warn("idempotency result not stored", zap.String("key", claimKey), zap.Error(err))
	}
}

func (s *AttendanceService) replay(ctx context.Context, claimKey, fingerprint string) (*dto.AttendanceResult, error) {
	entry, err := s.idempotency.Lookup(ctx, claimKey)
	if err != nil {
		return nil, appErrors.Persistence(err, "idempotency store unavailable")
	}
	switch {
	case entry == nil:
		return nil, appErrors.Clone(appErrors.ErrConflict, "a submission with this idempotency key is still in progress")
	case entry.Fingerprint != fingerprint:
		return nil, appErrors.Clone(appErrors.ErrConflict, "idempotency key was already used for a different submission")
	case entry.Pending():
		return nil, appErrors.Clone(appErrors.ErrConflict, "a submission with this idempotency key is still in progress")
	}
	var result dto.AttendanceResult
	if err := json.Unmarshal(entry.Result, &result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored idempotent result is unreadable")
	}
	result.Replayed = true
	return &result, nil
}

func submissionFingerprint(key models.AttendanceKey, sub Submission) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d|%d",
		key.GroupID,
		key.Date.Format("2006-01-02"),
		sub.Headcount.Present,
		sub.Headcount.Eating,
		sub.Headcount.NotEating,
		sub.ReinforcementDelta,
	)
}

// Get returns the actor's record for a group and day.
func (s *AttendanceService) Get(ctx context.Context, actor models.Actor, groupID, date string) (*models.AttendanceRecord, error) {
	day, err := s.resolveDay(date)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetAttendanceRecord(ctx, models.AttendanceKey{RegistrantID: actor.ID, GroupID: group.ID, Date: day})
	if err != nil {
		return nil, storeError(err, "attendance record")
	}
	if rec == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	}
	return rec, nil
}

// Quota reports the actor's reinforcement budget for a group and day.
func (s *AttendanceService) Quota(ctx context.Context, actor models.Actor, groupID, date string) (*dto.QuotaView, error) {
	day, err := s.resolveDay(date)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.GetAttendanceRecord(ctx, models.AttendanceKey{RegistrantID: actor.ID, GroupID: group.ID, Date: day})
	if err != nil {
		return nil, storeError(err, "attendance record")
	}
	used := 0
	if rec != nil {
		used = rec.ReinforcementsUsed
	}
	return &dto.QuotaView{
		GroupID:   group.ID,
		GroupName: group.Name,
		Date:      day.Format("2006-01-02"),
		Max:       group.MaxReinforcements,
		Used:      used,
		Available: s.ledger.Available(*group, used),
	}, nil
}

// Clear removes every attendance record of a day. Administrators only.
func (s *AttendanceService) Clear(ctx context.Context, actor models.Actor, date string) (*dto.ClearAttendanceResult, error) {
	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleTeacher:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can clear attendance")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unrecognised role")
	}
	day, err := s.resolveDay(date)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteAttendanceByDate(ctx, day)
	if err != nil {
		return nil, storeError(err, "attendance records")
	}
	s.logger.Info("attendance cleared", zap.String("actor_id", actor.ID), zap.Time("date", day), zap.Int("deleted", deleted))
	return &dto.ClearAttendanceResult{Date: day.Format("2006-01-02"), Deleted: deleted}, nil
}

func (s *AttendanceService) resolveDay(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return s.store.Today(), nil
	}
	day, err := models.ParseDay(strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, appErrors.Validation("date must use the YYYY-MM-DD format")
	}
	return day, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

// QueryObserver receives store call timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// CascadeWriter is the write surface available inside a store transaction.
type CascadeWriter interface {
	DeleteAttendanceByRegistrantGroupDate(ctx context.Context, registrantID, groupID string, date time.Time) (int, error)
	DeleteRegistration(ctx context.Context, id string) error
}

// RecordStoreOption customises a RecordStore.
type RecordStoreOption func(*RecordStore)

// WithClock overrides the clock used to resolve the active day.
func WithClock(clock func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithObserver attaches a query timing observer.
func WithObserver(observer QueryObserver) RecordStoreOption {
	return func(s *RecordStore) {
		s.observer = observer
	}
}

// RecordStore is the CRUD facade consumed by the meal queue engine.
type RecordStore struct {
	db         *sqlx.DB
	groups     *GroupRepository
	meals      *MealRegistrationRepository
	attendance *AttendanceRecordRepository
	location   *time.Location
	clock      func() time.Time
	observer   QueryObserver
}

// NewRecordStore builds a store over Postgres. loc decides the active calendar day.
func NewRecordStore(db *sqlx.DB, loc *time.Location, opts ...RecordStoreOption) *RecordStore {
	if loc == nil {
		loc = time.Local
	}
	store := &RecordStore{
		db:         db,
		groups:     NewGroupRepository(db),
		meals:      NewMealRegistrationRepository(db),
		attendance: NewAttendanceRecordRepository(db),
		location:   loc,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Today returns the active calendar day.
func (s *RecordStore) Today() time.Time {
	return models.DayOf(s.clock(), s.location)
}

func (s *RecordStore) observe(label string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveDBQuery(label, time.Since(start))
	}
}

// TodayRegistrations lists the active day's registrations.
func (s *RecordStore) TodayRegistrations(ctx context.Context) ([]models.MealRegistration, error) {
	defer s.observe("meal_registrations.today", time.Now())
	return s.meals.ListByDate(ctx, s.Today())
}

// AllGroups returns the group catalog.
func (s *RecordStore) AllGroups(ctx context.Context) ([]models.Group, error) {
	defer s.observe("groups.all", time.Now())
	return s.groups.List(ctx)
}

// FindRegistration fetches one registration.
func (s *RecordStore) FindRegistration(ctx context.Context, id string) (*models.MealRegistration, error) {
	defer s.observe("meal_registrations.find", time.Now())
	return s.meals.FindByID(ctx, id)
}

// DeleteRegistration removes one registration; sql.ErrNoRows when absent.
func (s *RecordStore) DeleteRegistration(ctx context.Context, id string) error {
	defer s.observe("meal_registrations.delete", time.Now())
	return s.meals.Delete(ctx, id)
}

// DeleteAttendanceByRegistrantGroupDate removes the attendance rows of a key.
func (s *RecordStore) DeleteAttendanceByRegistrantGroupDate(ctx context.Context, registrantID, groupID string, date time.Time) (int, error) {
	defer s.observe("attendance_records.delete_key", time.Now())
	return s.attendance.DeleteByKey(ctx, models.AttendanceKey{RegistrantID: registrantID, GroupID: groupID, Date: date})
}

// GetAttendanceRecord returns the record for key or nil.
func (s *RecordStore) GetAttendanceRecord(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error) {
	defer s.observe("attendance_records.get", time.Now())
	return s.attendance.Get(ctx, key)
}

// CreateAttendanceRecord inserts a fresh record.
func (s *RecordStore) CreateAttendanceRecord(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	defer s.observe("attendance_records.create", time.Now())
	return s.attendance.Create(ctx, rec)
}

// UpdateAttendanceRecord applies a versioned update.
func (s *RecordStore) UpdateAttendanceRecord(ctx context.Context, id string, upd models.AttendanceUpdate) (*models.AttendanceRecord, error) {
	defer s.observe("attendance_records.update", time.Now())
	return s.attendance.Update(ctx, id, upd)
}

// CreateRegistration inserts a registration.
func (s *RecordStore) CreateRegistration(ctx context.Context, reg *models.MealRegistration) error {
	defer s.observe("meal_registrations.create", time.Now())
	return s.meals.Create(ctx, reg)
}

// MarkRegistrationEntered stamps the entry time of a waiting registration.
func (s *RecordStore) MarkRegistrationEntered(ctx context.Context, id string, enteredAt time.Time) error {
	defer s.observe("meal_registrations.enter", time.Now())
	return s.meals.MarkEntered(ctx, id, enteredAt)
}

// ListAttendanceByDate returns a day's attendance records.
func (s *RecordStore) ListAttendanceByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error) {
	defer s.observe("attendance_records.list_date", time.Now())
	return s.attendance.ListByDate(ctx, day)
}

// DeleteAttendanceByDate clears a day's attendance records.
func (s *RecordStore) DeleteAttendanceByDate(ctx context.Context, day time.Time) (int, error) {
	defer s.observe("attendance_records.delete_date", time.Now())
	return s.attendance.DeleteByDate(ctx, day)
}

// InTx runs fn inside a database transaction, committing when fn returns nil.
func (s *RecordStore) InTx(ctx context.Context, fn func(tx CascadeWriter) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer s.observe("record_store.tx", time.Now())

	if err := fn(&txWriter{meals: s.meals.with(tx), attendance: s.attendance.with(tx)}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txWriter struct {
	meals      *MealRegistrationRepository
	attendance *AttendanceRecordRepository
}

func (w *txWriter) DeleteAttendanceByRegistrantGroupDate(ctx context.Context, registrantID, groupID string, date time.Time) (int, error) {
	return w.attendance.DeleteByKey(ctx, models.AttendanceKey{RegistrantID: registrantID, GroupID: groupID, Date: date})
}

func (w *txWriter) DeleteRegistration(ctx context.Context, id string) error {
	return w.meals.Delete(ctx, id)
}

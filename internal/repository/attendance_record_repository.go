package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

const attendanceRecordColumns = `id, registrant_id, registrant_name, group_id, group_name, group_category, date, students_present, students_eating, students_not_eating, reinforcements_used, version, created_at, updated_at`

// AttendanceRecordRepository persists per-day attendance and reinforcement tallies.
type AttendanceRecordRepository struct {
	db queryer
}

// NewAttendanceRecordRepository constructs the repository.
func NewAttendanceRecordRepository(db *sqlx.DB) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: db}
}

func (r *AttendanceRecordRepository) with(q queryer) *AttendanceRecordRepository {
	return &AttendanceRecordRepository{db: q}
}

// Get returns the record for key, or nil when none exists.
func (r *AttendanceRecordRepository) Get(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE registrant_id = $1 AND group_id = $2 AND date = $3`, attendanceRecordColumns)
	var rec models.AttendanceRecord
	if err := r.db.GetContext(ctx, &rec, query, key.RegistrantID, key.GroupID, key.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	return &rec, nil
}

// ListByDate returns every record of a day ordered by group name.
func (r *AttendanceRecordRepository) ListByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE date = $1 ORDER BY group_name ASC, registrant_name ASC`, attendanceRecordColumns)
	var recs []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &recs, query, day); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return recs, nil
}

// Create inserts a record at version 1. ErrVersionConflict is returned when a
// row for the same key already exists.
func (r *AttendanceRecordRepository) Create(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := fmt.Sprintf(`INSERT INTO attendance_records (id, registrant_id, registrant_name, group_id, group_name, group_category, date, students_present, students_eating, students_not_eating, reinforcements_used, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $12)
ON CONFLICT (registrant_id, group_id, date) DO NOTHING
RETURNING %s`, attendanceRecordColumns)
	var created models.AttendanceRecord
	err := r.db.GetContext(ctx, &created, query,
		rec.ID, rec.RegistrantID, rec.RegistrantName, rec.GroupID, rec.GroupName, rec.GroupCategory, rec.Date,
		rec.StudentsPresent, rec.StudentsEating, rec.StudentsNotEating, rec.ReinforcementsUsed, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("create attendance record: %w", err)
	}
	return &created, nil
}

// Update overwrites headcount and reinforcements when the stored version matches.
func (r *AttendanceRecordRepository) Update(ctx context.Context, id string, upd models.AttendanceUpdate) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`UPDATE attendance_records
SET students_present = $3, students_eating = $4, students_not_eating = $5, reinforcements_used = $6, version = version + 1, updated_at = $7
WHERE id = $1 AND version = $2
RETURNING %s`, attendanceRecordColumns)
	var updated models.AttendanceRecord
	err := r.db.GetContext(ctx, &updated, query, id, upd.ExpectedVersion, upd.Present, upd.Eating, upd.NotEating, upd.ReinforcementsUsed, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("update attendance record: %w", err)
	}
	return &updated, nil
}

// DeleteByKey removes the record(s) for a registrant, group and day, returning the count.
func (r *AttendanceRecordRepository) DeleteByKey(ctx context.Context, key models.AttendanceKey) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE registrant_id = $1 AND group_id = $2 AND date = $3`, key.RegistrantID, key.GroupID, key.Date)
	if err != nil {
		return 0, fmt.Errorf("delete attendance record: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return 0, fmt.Errorf("delete attendance record: %w", err)
	}
	return n, nil
}

// DeleteByDate clears every record of a day, returning the count.
func (r *AttendanceRecordRepository) DeleteByDate(ctx context.Context, day time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE date = $1`, day)
	if err != nil {
		return 0, fmt.Errorf("delete attendance records by date: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return 0, fmt.Errorf("delete attendance records by date: %w", err)
	}
	return n, nil
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-queue-api/internal/models"
)

var attendanceRowColumns = []string{"id", "registrant_id", "registrant_name", "group_id", "group_name", "group_category", "date", "students_present", "students_eating", "students_not_eating", "reinforcements_used", "version", "created_at", "updated_at"}

func TestAttendanceRecordRepositoryGetMissingReturnsNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)
	key := models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-1", Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM attendance_records WHERE registrant_id = $1 AND group_id = $2 AND date = $3`)).
		WithArgs(key.RegistrantID, key.GroupID, key.Date).
		WillReturnError(sql.ErrNoRows)

	rec, err := repo.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryUpdateVersionMismatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND version = $2`)).
		WithArgs("rec-1", 3, 10, 8, 2, 4, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns))

	_, err := repo.Update(context.Background(), "rec-1", models.AttendanceUpdate{
		Headcount:          models.Headcount{Present: 10, Eating: 8, NotEating: 2},
		ReinforcementsUsed: 4,
		ExpectedVersion:    3,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryUpdateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`version = version + 1`)).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).
			AddRow("rec-1", "teacher-1", "Ana", "g-1", "3A", "elementary", day, 10, 8, 2, 4, 4, now, now))

	rec, err := repo.Update(context.Background(), "rec-1", models.AttendanceUpdate{
		Headcount:          models.Headcount{Present: 10, Eating: 8, NotEating: 2},
		ReinforcementsUsed: 4,
		ExpectedVersion:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Version)
	assert.Equal(t, models.GroupCategoryElementary, rec.GroupCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryCreateDuplicateKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (registrant_id, group_id, date) DO NOTHING`)).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns))

	_, err := repo.Create(context.Background(), &models.AttendanceRecord{RegistrantID: "teacher-1", GroupID: "g-1"})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRecordRepositoryDeleteByKeyCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRecordRepository(db)
	key := models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-1", Date: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)}

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM attendance_records WHERE registrant_id = $1 AND group_id = $2 AND date = $3`)).
		WithArgs(key.RegistrantID, key.GroupID, key.Date).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

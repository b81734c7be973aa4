package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	labels []string
}

func (o *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	o.labels = append(o.labels, label)
}

func TestRecordStoreTodayUsesConfiguredLocation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	loc := time.FixedZone("UTC-6", -6*60*60)
	// 03:00 UTC on the 5th is still the 4th at UTC-6.
	clock := func() time.Time { return time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC) }
	observer := &recordingObserver{}
	store := NewRecordStore(db, loc, WithClock(clock), WithObserver(observer))

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM meal_registrations WHERE date = $1`)).
		WithArgs(day).
		WillReturnRows(sqlmock.NewRows(mealRegistrationRowColumns))

	regs, err := store.TodayRegistrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.Equal(t, []string{"meal_registrations.today"}, observer.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreInTxCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewRecordStore(db, time.UTC)
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM attendance_records`)).
		WithArgs("teacher-1", "g-1", day).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM meal_registrations WHERE id = $1`)).
		WithArgs("reg-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var deleted int
	err := store.InTx(context.Background(), func(tx CascadeWriter) error {
		n, err := tx.DeleteAttendanceByRegistrantGroupDate(context.Background(), "teacher-1", "g-1", day)
		if err != nil {
			return err
		}
		deleted = n
		return tx.DeleteRegistration(context.Background(), "reg-1")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordStoreInTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewRecordStore(db, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM meal_registrations WHERE id = $1`)).
		WithArgs("reg-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx CascadeWriter) error {
		return tx.DeleteRegistration(context.Background(), "reg-1")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

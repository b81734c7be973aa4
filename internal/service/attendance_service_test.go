package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/internal/repository"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

var serviceDay = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

type attendanceStoreStub struct {
	records   map[models.AttendanceKey]*models.AttendanceRecord
	createErr error
	updateErr error
	cleared   time.Time
	seq       int
}

func newAttendanceStoreStub() *attendanceStoreStub {
	return &attendanceStoreStub{records: map[models.AttendanceKey]*models.AttendanceRecord{}}
}

func (s *attendanceStoreStub) Today() time.Time { return serviceDay }

func (s *attendanceStoreStub) GetAttendanceRecord(ctx context.Context, key models.AttendanceKey) (*models.AttendanceRecord, error) {
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (s *attendanceStoreStub) CreateAttendanceRecord(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, exists := s.records[rec.Key()]; exists {
		return nil, repository.ErrVersionConflict
	}
	s.seq++
	stored := *rec
	stored.ID = fmt.Sprintf("rec-%d", s.seq)
	stored.Version = 1
	s.records[stored.Key()] = &stored
	copied := stored
	return &copied, nil
}

func (s *attendanceStoreStub) UpdateAttendanceRecord(ctx context.Context, id string, upd models.AttendanceUpdate) (*models.AttendanceRecord, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	for _, rec := range s.records {
		if rec.ID != id {
			continue
		}
		if rec.Version != upd.ExpectedVersion {
			return nil, repository.ErrVersionConflict
		}
		rec.StudentsPresent = upd.Present
		rec.StudentsEating = upd.Eating
		rec.StudentsNotEating = upd.NotEating
		rec.ReinforcementsUsed = upd.ReinforcementsUsed
		rec.Version++
		copied := *rec
		return &copied, nil
	}
	return nil, repository.ErrVersionConflict
}

func (s *attendanceStoreStub) DeleteAttendanceByDate(ctx context.Context, day time.Time) (int, error) {
	s.cleared = day
	n := 0
	for key := range s.records {
		if key.Date.Equal(day) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

type groupLookupStub struct {
	groups map[string]models.Group
}

func (s groupLookupStub) Get(ctx context.Context, id string) (*models.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
	}
	return &g, nil
}

type idempotencyStub struct {
	entries    map[string]repository.IdempotencyEntry
	released   []string
	claimCalls int
	claimErr   error
}

func (s *idempotencyStub) Claim(ctx context.Context, key, fingerprint string) (bool, error) {
	s.claimCalls++
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if _, exists := s.entries[key]; exists {
		return false, nil
	}
	s.entries[key] = repository.IdempotencyEntry{Fingerprint: fingerprint}
	return true, nil
}

func (s *idempotencyStub) Lookup(ctx context.Context, key string) (*repository.IdempotencyEntry, error) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *idempotencyStub) Complete(ctx context.Context, key, fingerprint string, result []byte) error {
	s.entries[key] = repository.IdempotencyEntry{Fingerprint: fingerprint, Result: result}
	return nil
}

func (s *idempotencyStub) Release(ctx context.Context, key string) error {
	delete(s.entries, key)
	s.released = append(s.released, key)
	return nil
}

type quotaRecorderStub struct {
	groups []string
}

func (r *quotaRecorderStub) RecordQuotaRejection(group string) {
	r.groups = append(r.groups, group)
}

type attendanceFixture struct {
	store   *attendanceStoreStub
	idem    *idempotencyStub
	metrics *quotaRecorderStub
	svc     *AttendanceService
}

func newAttendanceFixture() attendanceFixture {
	store := newAttendanceStoreStub()
	idem := &idempotencyStub{entries: map[string]repository.IdempotencyEntry{}}
	metrics := &quotaRecorderStub{}
	groups := groupLookupStub{groups: map[string]models.Group{
		"g-3a": {ID: "g-3a", Name: "3A", Category: models.GroupCategoryElementary, MaxReinforcements: 5},
		"g-4b": {ID: "g-4b", Name: "4B", Category: models.GroupCategoryElementary, MaxReinforcements: 5},
	}}
	return attendanceFixture{
		store:   store,
		idem:    idem,
		metrics: metrics,
		svc:     NewAttendanceService(store, groups, idem, metrics, nil, nil),
	}
}

func submission(present, eating, reinforcements int) dto.SubmitAttendanceRequest {
	return dto.SubmitAttendanceRequest{
		GroupID:         "g-3a",
		StudentsPresent: ptrInt(present),
		StudentsEating:  ptrInt(eating),
		Reinforcements:  reinforcements,
	}
}

func TestAttendanceSubmitCreatesRecord(t *testing.T) {
	f := newAttendanceFixture()

	res, err := f.svc.Submit(context.Background(), teacherOne, submission(10, 8, 3), "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.ReinforcementsUsed)
	assert.Equal(t, 2, res.Record.StudentsNotEating)
	assert.Equal(t, 2, res.Available)
	assert.Equal(t, 1, res.Record.Version)
	assert.Equal(t, serviceDay, res.Record.Date)
	assert.Equal(t, "3A", res.Record.GroupName)
	assert.False(t, res.Replayed)
}

func TestAttendanceSubmitAccumulatesAndRejectsOverQuota(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 3), "")
	require.NoError(t, err)
	res, err := f.svc.Submit(ctx, teacherOne, submission(12, 9, 2), "")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Record.ReinforcementsUsed)
	assert.Equal(t, 0, res.Available)
	assert.Equal(t, 2, res.Record.Version)

	_, err = f.svc.Submit(ctx, teacherOne, submission(12, 9, 1), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrQuotaExceeded))
	available, ok := appErrors.Available(err)
	require.True(t, ok)
	assert.Equal(t, 0, available)
	assert.Equal(t, []string{"3A"}, f.metrics.groups)

	key := models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-3a", Date: serviceDay}
	assert.Equal(t, 5, f.store.records[key].ReinforcementsUsed)
	assert.Equal(t, 12, f.store.records[key].StudentsPresent)
}

func TestAttendanceSubmitSeparateRegistrantsHaveSeparateTallies(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 5), "")
	require.NoError(t, err)
	res, err := f.svc.Submit(ctx, teacherTwo, submission(10, 8, 4), "")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Record.ReinforcementsUsed)
}

func TestAttendanceSubmitRejectsBadHeadcount(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Submit(context.Background(), teacherOne, submission(5, 8, 0), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req := submission(10, 8, 0)
	req.StudentsNotEating = ptrInt(1)
	_, err = f.svc.Submit(context.Background(), teacherOne, req, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = submission(10, 8, 0)
	req.StudentsPresent = nil
	_, err = f.svc.Submit(context.Background(), teacherOne, req, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = submission(10, 8, 0)
	req.Date = "04/03/2024"
	_, err = f.svc.Submit(context.Background(), teacherOne, req, "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.store.records)
}

func TestAttendanceSubmitUnknownGroup(t *testing.T) {
	f := newAttendanceFixture()
	req := submission(10, 8, 1)
	req.GroupID = "missing"

	_, err := f.svc.Submit(context.Background(), teacherOne, req, "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestAttendanceSubmitReplayDoesNotReapply(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)
	second, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, 2, second.Record.ReinforcementsUsed)
	assert.Equal(t, 3, second.Available)
	key := models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-3a", Date: serviceDay}
	assert.Equal(t, 2, f.store.records[key].ReinforcementsUsed)
}

func TestAttendanceSubmitReplayReturnsCommittedResult(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, teacherOne, submission(11, 9, 1), "")
	require.NoError(t, err)

	replayed, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, 2, replayed.Record.ReinforcementsUsed)
	assert.Equal(t, 10, replayed.Record.StudentsPresent)
	assert.Equal(t, 1, replayed.Record.Version)
}

func TestAttendanceSubmitKeyReusedForOtherPayloadConflicts(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	other := submission(10, 10, 1)
	other.GroupID = "g-4b"
	_, err := f.svc.Submit(ctx, teacherOne, other, "")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)

	reused := submission(12, 12, 3)
	reused.GroupID = "g-4b"
	_, err = f.svc.Submit(ctx, teacherOne, reused, "key-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.svc.Submit(ctx, teacherOne, submission(10, 8, 1), "key-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	key := models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-4b", Date: serviceDay}
	assert.Equal(t, 1, f.store.records[key].ReinforcementsUsed)
	assert.Equal(t, 10, f.store.records[key].StudentsPresent)
}

func TestAttendanceSubmitInFlightKeyConflicts(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 1), "")
	require.NoError(t, err)
	fingerprint := submissionFingerprint(
		models.AttendanceKey{RegistrantID: "teacher-1", GroupID: "g-3a", Date: serviceDay},
		Submission{Headcount: CompleteHeadcount(10, 8, nil), ReinforcementDelta: 2},
	)
	f.idem.entries["teacher-1:key-1"] = repository.IdempotencyEntry{Fingerprint: fingerprint}

	_, err = f.svc.Submit(ctx, teacherOne, submission(10, 8, 2), "key-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAttendanceSubmitValidatesBeforeClaimingKey(t *testing.T) {
	f := newAttendanceFixture()

	_, err := f.svc.Submit(context.Background(), teacherOne, submission(20, 22, 0), "key-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, f.idem.claimCalls)
	assert.Empty(t, f.idem.released)
}

func TestAttendanceSubmitFailureReleasesKey(t *testing.T) {
	f := newAttendanceFixture()
	f.store.createErr = errors.New("connection refused")

	_, err := f.svc.Submit(context.Background(), teacherOne, submission(10, 8, 2), "key-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Equal(t, []string{"teacher-1:key-1"}, f.idem.released)
	assert.Empty(t, f.idem.entries)
}

func TestAttendanceSubmitClaimErrorFallsThrough(t *testing.T) {
	f := newAttendanceFixture()
	f.idem.claimErr = errors.New("redis down")

	res, err := f.svc.Submit(context.Background(), teacherOne, submission(10, 8, 2), "key-1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Record.ReinforcementsUsed)
}

func TestAttendanceSubmitConcurrentUpdateConflicts(t *testing.T) {
	f := newAttendanceFixture()
	_, err := f.svc.Submit(context.Background(), teacherOne, submission(10, 8, 1), "")
	require.NoError(t, err)
	f.store.updateErr = repository.ErrVersionConflict

	_, err = f.svc.Submit(context.Background(), teacherOne, submission(10, 8, 1), "")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAttendanceQuotaAndGet(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()

	quota, err := f.svc.Quota(ctx, teacherOne, "g-3a", "")
	require.NoError(t, err)
	assert.Equal(t, 5, quota.Available)
	assert.Equal(t, "2024-03-04", quota.Date)

	_, err = f.svc.Get(ctx, teacherOne, "g-3a", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Submit(ctx, teacherOne, submission(10, 8, 4), "")
	require.NoError(t, err)

	quota, err = f.svc.Quota(ctx, teacherOne, "g-3a", "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, 4, quota.Used)
	assert.Equal(t, 1, quota.Available)

	rec, err := f.svc.Get(ctx, teacherOne, "g-3a", "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.ReinforcementsUsed)
}

func TestAttendanceClearRequiresAdministrator(t *testing.T) {
	f := newAttendanceFixture()
	ctx := context.Background()
	_, err := f.svc.Submit(ctx, teacherOne, submission(10, 8, 1), "")
	require.NoError(t, err)

	_, err = f.svc.Clear(ctx, teacherOne, "")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	res, err := f.svc.Clear(ctx, admin, "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, f.store.records)
}

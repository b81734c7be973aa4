package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/meal-queue-api/internal/dto"
	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
)

type attendanceServiceMock struct {
	key       string
	req       dto.SubmitAttendanceRequest
	submitErr error
	clearDate string
}

func (m *attendanceServiceMock) Submit(ctx context.Context, actor models.Actor, req dto.SubmitAttendanceRequest, idempotencyKey string) (*dto.AttendanceResult, error) {
	m.key = idempotencyKey
	m.req = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &dto.AttendanceResult{Record: &models.AttendanceRecord{ID: "att-1"}, Available: 2}, nil
}

func (m *attendanceServiceMock) Get(ctx context.Context, actor models.Actor, groupID, date string) (*models.AttendanceRecord, error) {
	return nil, appErrors.ErrNotFound
}

func (m *attendanceServiceMock) Quota(ctx context.Context, actor models.Actor, groupID, date string) (*dto.QuotaView, error) {
	return &dto.QuotaView{GroupID: groupID, Max: 5, Used: 3, Available: 2}, nil
}

func (m *attendanceServiceMock) Clear(ctx context.Context, actor models.Actor, date string) (*dto.ClearAttendanceResult, error) {
	m.clearDate = date
	return &dto.ClearAttendanceResult{Date: date, Deleted: 4}, nil
}

func TestAttendanceHandlerSubmitPassesIdempotencyKey(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodPost, "/attendance", []byte(`{"groupId":"g-3a","studentsPresent":10,"studentsEating":9,"reinforcements":2}`))
	c.Request.Header.Set(IdempotencyHeader, "submit-42")
	withActor(c, "teacher-1", models.RoleTeacher)
	h.Submit(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "submit-42", svc.key)
	require.NotNil(t, svc.req.StudentsPresent)
	assert.Equal(t, 10, *svc.req.StudentsPresent)
	assert.Nil(t, svc.req.StudentsNotEating)
	assert.Equal(t, 2, svc.req.Reinforcements)
}

func TestAttendanceHandlerQuotaExceeded(t *testing.T) {
	svc := &attendanceServiceMock{submitErr: appErrors.QuotaExceeded(1)}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodPost, "/attendance", []byte(`{"groupId":"g-3a","studentsPresent":1,"studentsEating":1,"reinforcements":4}`))
	withActor(c, "teacher-1", models.RoleTeacher)
	h.Submit(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", env.Error.Code)
	assert.EqualValues(t, 1, env.Error.Details["available"])
}

func TestAttendanceHandlerRejectsMalformedBody(t *testing.T) {
	h := NewAttendanceHandler(&attendanceServiceMock{})

	c, w := newGinContext(http.MethodPost, "/attendance", []byte(`{"groupId":`))
	withActor(c, "teacher-1", models.RoleTeacher)
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerQuotaAndClear(t *testing.T) {
	svc := &attendanceServiceMock{}
	h := NewAttendanceHandler(svc)

	c, w := newGinContext(http.MethodGet, "/attendance/quota?groupId=g-3a", nil)
	withActor(c, "teacher-1", models.RoleTeacher)
	h.Quota(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"available":2`)

	c, w = newGinContext(http.MethodDelete, "/attendance?date=2024-03-04", nil)
	withActor(c, "admin-1", models.RoleAdministrator)
	h.Clear(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-04", svc.clearDate)

	c, w = newGinContext(http.MethodGet, "/attendance?groupId=g-3a", nil)
	withActor(c, "teacher-1", models.RoleTeacher)
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

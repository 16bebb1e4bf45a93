package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alathletics/internal/types"
)

type stubAppointmentStore struct {
	createErr    error
	created      *types.Appointment
	byID         *types.Appointment
	getErr       error
	updateErr    error
	updateCalls  int
	updateStatus types.AppointmentStatus
}

func (s *stubAppointmentStore) CreateIfSlotFree(_ context.Context, a *types.Appointment) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = a
	return nil
}

func (s *stubAppointmentStore) GetByID(context.Context, string) (*types.Appointment, error) {
	return s.byID, s.getErr
}

func (s *stubAppointmentStore) UpdateStatus(_ context.Context, _ string, status types.AppointmentStatus) error {
	s.updateCalls++
	s.updateStatus = status
	return s.updateErr
}

func newTestBookingService(t *testing.T, store *stubAppointmentStore) *BookingService {
	t.Helper()
	calc, err := NewSlotCalculator(testSchedulingConfig(), &stubAppointmentReader{})
	require.NoError(t, err)
	return NewBookingService(store, calc, slog.Default())
}

func TestBookingService_Book_Success(t *testing.T) {
	store := &stubAppointmentStore{}
	svc := newTestBookingService(t, store)

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	appt, err := svc.Book(context.Background(), "user_1", day, "10:00", types.CheckInVideo, "first session")
	require.NoError(t, err)

	assert.NotEmpty(t, appt.ID)
	assert.Equal(t, "user_1", appt.UserID)
	assert.Equal(t, types.AppointmentScheduled, appt.Status)
	assert.Equal(t, types.CheckInVideo, appt.CheckInType)
	assert.Equal(t, time.UTC, appt.ScheduledDate.Location())
	require.NotNil(t, store.created)
	assert.Equal(t, appt.ID, store.created.ID)
}

func TestBookingService_Book_InvalidSlot_NoStoreCall(t *testing.T) {
	store := &stubAppointmentStore{}
	svc := newTestBookingService(t, store)

	_, err := svc.Book(context.Background(), "user_1", time.Now(), "03:00", types.CheckInPhone, "")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidSlot, appErr.Code)
	assert.Nil(t, store.created)
}

func TestBookingService_Book_SlotTaken(t *testing.T) {
	store := &stubAppointmentStore{
		createErr: types.NewAppError(types.ErrCodeConflictSlotTaken, "the requested slot is already booked", nil),
	}
	svc := newTestBookingService(t, store)

	day := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), "user_1", day, "10:00", types.CheckInVideo, "")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictSlotTaken, appErr.Code)
}

func TestBookingService_Cancel_Owner(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentScheduled},
	}
	svc := newTestBookingService(t, store)

	actor := types.Actor{UserID: "user_1", Role: types.RoleClient}
	appt, err := svc.Cancel(context.Background(), actor, "appt_1")
	require.NoError(t, err)

	assert.Equal(t, types.AppointmentCancelled, appt.Status)
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, types.AppointmentCancelled, store.updateStatus)
}

func TestBookingService_Cancel_AdminMayCancelOthers(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentScheduled},
	}
	svc := newTestBookingService(t, store)

	actor := types.Actor{UserID: "coach_1", Role: types.RoleAdmin}
	_, err := svc.Cancel(context.Background(), actor, "appt_1")
	require.NoError(t, err)
}

func TestBookingService_Cancel_OtherUserForbidden(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentScheduled},
	}
	svc := newTestBookingService(t, store)

	actor := types.Actor{UserID: "user_2", Role: types.RoleClient}
	_, err := svc.Cancel(context.Background(), actor, "appt_1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodePermissionRole, appErr.Code)
	assert.Equal(t, 0, store.updateCalls)
}

func TestBookingService_Cancel_OnlyScheduled(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentCompleted},
	}
	svc := newTestBookingService(t, store)

	actor := types.Actor{UserID: "user_1", Role: types.RoleClient}
	_, err := svc.Cancel(context.Background(), actor, "appt_1")
	require.Error(t, err)
	assert.Equal(t, 0, store.updateCalls)
}

func TestBookingService_Complete_Success(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentScheduled},
	}
	svc := newTestBookingService(t, store)

	appt, err := svc.Complete(context.Background(), "appt_1")
	require.NoError(t, err)
	assert.Equal(t, types.AppointmentCompleted, appt.Status)
	assert.Equal(t, types.AppointmentCompleted, store.updateStatus)
}

func TestBookingService_Complete_OnlyScheduled(t *testing.T) {
	store := &stubAppointmentStore{
		byID: &types.Appointment{ID: "appt_1", UserID: "user_1", Status: types.AppointmentCancelled},
	}
	svc := newTestBookingService(t, store)

	_, err := svc.Complete(context.Background(), "appt_1")
	require.Error(t, err)
	assert.Equal(t, 0, store.updateCalls)
}

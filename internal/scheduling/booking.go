package scheduling

import (
	"context"
	"log/slog"
	"time"

	"alathletics/internal/types"

	"github.com/google/uuid"
)

// AppointmentStore is the write surface the booking service needs.
// Satisfied by *db.AppointmentRepository.
type AppointmentStore interface {
	CreateIfSlotFree(ctx context.Context, a *types.Appointment) error
	GetByID(ctx context.Context, id string) (*types.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status types.AppointmentStatus) error
}

// BookingService books, cancels, and completes coaching sessions while
// holding the slot invariant: no two non-cancelled appointments ever share a
// scheduled time, regardless of user.
type BookingService struct {
	appointments AppointmentStore
	slots        *SlotCalculator
	logger       *slog.Logger
}

// NewBookingService creates a BookingService.
func NewBookingService(appointments AppointmentStore, slots *SlotCalculator, logger *slog.Logger) *BookingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingService{
		appointments: appointments,
		slots:        slots,
		logger:       logger,
	}
}

// Book creates a scheduled appointment at the given slot label on the given
// display-timezone calendar day. The slot conflict check happens inside the
// insert itself; a booking that loses the guarded insert gets
// conflict_slot_taken.
func (s *BookingService) Book(
	ctx context.Context,
	userID string,
	date time.Time,
	slotLabel string,
	checkIn types.CheckInType,
	notes string,
) (*types.Appointment, error) {
	scheduledAt, err := s.slots.SlotTime(date, slotLabel)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	appointment := &types.Appointment{
		ID:            uuid.NewString(),
		UserID:        userID,
		ScheduledDate: scheduledAt,
		Status:        types.AppointmentScheduled,
		CheckInType:   checkIn,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.appointments.CreateIfSlotFree(ctx, appointment); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appointment.ID,
		"user_id", userID,
		"scheduled_at", scheduledAt,
		"slot", slotLabel,
	)

	return appointment, nil
}

// Cancel moves a scheduled appointment to cancelled, freeing its slot.
// Only the owner (or an admin) may cancel, and only scheduled appointments
// can be cancelled.
func (s *BookingService) Cancel(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appointment.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, types.NewAppError(
			types.ErrCodePermissionRole,
			"appointment belongs to another user",
			nil,
		)
	}

	if appointment.Status != types.AppointmentScheduled {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidSlot,
			"only scheduled appointments can be cancelled",
			nil,
		)
	}

	if err := s.appointments.UpdateStatus(ctx, appointmentID, types.AppointmentCancelled); err != nil {
		return nil, err
	}

	appointment.Status = types.AppointmentCancelled
	s.logger.InfoContext(ctx, "appointment cancelled",
		"appointment_id", appointmentID,
		"user_id", appointment.UserID,
	)
	return appointment, nil
}

// Complete marks a scheduled appointment as completed. Admin only; routing
// enforces the role, this just flips the status.
func (s *BookingService) Complete(ctx context.Context, appointmentID string) (*types.Appointment, error) {
	appointment, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appointment.Status != types.AppointmentScheduled {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidSlot,
			"only scheduled appointments can be completed",
			nil,
		)
	}

	if err := s.appointments.UpdateStatus(ctx, appointmentID, types.AppointmentCompleted); err != nil {
		return nil, err
	}

	appointment.Status = types.AppointmentCompleted
	return appointment, nil
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"alathletics/internal/types"
)

// AppointmentRepository provides data access for the appointments table.
//
// Slot invariant: no two non-cancelled appointments may occupy the same
// scheduled timestamp. The invariant is global (one coach), not per-user,
// and is enforced by CreateIfSlotFree's guarded insert.
type AppointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository creates an AppointmentRepository backed by the
// given database connection (pool or transaction).
func NewAppointmentRepository(db DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `a.id, a.user_id, a.scheduled_date, a.status, a.check_in_type,
	a.notes, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*types.Appointment, error) {
	var a types.Appointment
	var notes *string
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ScheduledDate,
		&a.Status,
		&a.CheckInType,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

// ListScheduledInRange returns appointments with status "scheduled" whose
// scheduled timestamp falls in [from, to). Cancelled and completed rows never
// block a slot, so the availability calculator only needs this subset.
func (r *AppointmentRepository) ListScheduledInRange(ctx context.Context, from, to time.Time) ([]*types.Appointment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.scheduled_date >= $1
		   AND a.scheduled_date < $2
		   AND a.status = $3
		 ORDER BY a.scheduled_date ASC`,
		from,
		to,
		types.AppointmentScheduled,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list appointments", err)
	}
	defer rows.Close()

	var appts []*types.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan appointment row", err)
		}
		appts = append(appts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate appointment rows", err)
	}
	return appts, nil
}

// CreateIfSlotFree inserts an appointment only when no non-cancelled
// appointment already occupies the same timestamp. The guarded insert rejects
// sequential double-booking; under read-committed, truly concurrent inserts
// of one slot need the partial unique index on scheduled_date to collide.
// Zero rows affected means the slot is taken.
func (r *AppointmentRepository) CreateIfSlotFree(ctx context.Context, a *types.Appointment) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO appointments
		   (id, user_id, scheduled_date, status, check_in_type, notes, created_at, updated_at)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8
		 WHERE NOT EXISTS (
		   SELECT 1 FROM appointments
		   WHERE scheduled_date = $3
		     AND status != $9
		 )`,
		a.ID,
		a.UserID,
		a.ScheduledDate,
		a.Status,
		a.CheckInType,
		a.Notes,
		a.CreatedAt,
		a.UpdatedAt,
		types.AppointmentCancelled,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert appointment", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictSlotTaken, "the requested slot is already booked", nil)
	}
	return nil
}

// GetByID retrieves an appointment by id.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*types.Appointment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+appointmentColumns+`
		 FROM appointments a
		 WHERE a.id = $1`,
		id,
	)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve appointment", err)
	}
	return a, nil
}

// UpdateStatus transitions an appointment's lifecycle state.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status types.AppointmentStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE appointments
		 SET status = $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		status,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update appointment status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
	}
	return nil
}

// CountScheduledByUser returns the number of scheduled (upcoming or pending)
// sessions for a user. Used by the admin listing's per-user enrichment.
func (r *AppointmentRepository) CountScheduledByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE user_id = $1 AND status = $2`,
		userID,
		types.AppointmentScheduled,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count scheduled sessions", err)
	}
	return n, nil
}

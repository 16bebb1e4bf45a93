package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"alathletics/internal/core"
	"alathletics/internal/types"
)

// dateParamLayout is the YYYY-MM-DD layout used by scheduling query params.
const dateParamLayout = "2006-01-02"

// AvailabilityService computes open slots for a day. Implemented by
// *scheduling.SlotCalculator.
type AvailabilityService interface {
	AvailableSlots(ctx context.Context, date time.Time) ([]string, error)
}

// BookingManager books and cancels coaching sessions. Implemented by
// *scheduling.BookingService.
type BookingManager interface {
	Book(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error)
	Cancel(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error)
}

// BookRequest is the request body for POST /v1/appointments.
type BookRequest struct {
	Date        string            `json:"date" validate:"required"`
	Slot        string            `json:"slot" validate:"required"`
	CheckInType types.CheckInType `json:"check_in_type" validate:"required,oneof=video phone in_person"`
	Notes       string            `json:"notes" validate:"max=2000"`
}

// AvailabilityResponse is the response body for the availability endpoint.
type AvailabilityResponse struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

// SchedulingHandler serves the appointment endpoints.
type SchedulingHandler struct {
	availability AvailabilityService
	bookings     BookingManager
	validator    *core.Validator
	logger       *slog.Logger
}

// NewSchedulingHandler creates a SchedulingHandler.
func NewSchedulingHandler(
	availability AvailabilityService,
	bookings BookingManager,
	v *core.Validator,
	l *slog.Logger,
) *SchedulingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SchedulingHandler{
		availability: availability,
		bookings:     bookings,
		validator:    v,
		logger:       l,
	}
}

// RegisterRoutes mounts the appointment endpoints.
func (h *SchedulingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/appointments/availability", h.GetAvailability)
	r.Post("/appointments", h.Book)
	r.Post("/appointments/{id}/cancel", h.Cancel)
}

// GetAvailability handles GET /v1/appointments/availability?date=YYYY-MM-DD.
func (h *SchedulingHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.RequireActor(w, r); !ok {
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := parseDateParam(dateStr)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	slots, err := h.availability.AvailableSlots(r.Context(), date)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: AvailabilityResponse{
		Date:  dateStr,
		Slots: slots,
	}})
}

// Book handles POST /v1/appointments.
func (h *SchedulingHandler) Book(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req BookRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	date, err := parseDateParam(req.Date)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	appointment, err := h.bookings.Book(r.Context(), actor.UserID, date, req.Slot, req.CheckInType, req.Notes)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: appointment})
}

// Cancel handles POST /v1/appointments/{id}/cancel.
func (h *SchedulingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	appointmentID := chi.URLParam(r, "id")
	if appointmentID == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"appointment id is required",
			nil,
		))
		return
	}

	appointment, err := h.bookings.Cancel(r.Context(), actor, appointmentID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: appointment})
}

// parseDateParam parses a YYYY-MM-DD value into a calendar date.
func parseDateParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidDate,
			"date is required in YYYY-MM-DD format",
			nil,
		)
	}
	date, err := time.Parse(dateParamLayout, value)
	if err != nil {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidDate,
			"date must be in YYYY-MM-DD format",
			err,
		)
	}
	return date, nil
}

// Package scheduling implements coaching-session availability and booking.
// Appointments are stored as UTC timestamps; the bookable window and slot
// labels are expressed in the coach's display timezone, so every availability
// computation converts storage time into display time before comparing.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"alathletics/internal/config"
	"alathletics/internal/types"
)

// slotLabelFormat is the HH:MM label layout used across the API surface.
const slotLabelFormat = "15:04"

// AppointmentReader is the read surface the calculator needs.
// Satisfied by *db.AppointmentRepository.
type AppointmentReader interface {
	ListScheduledInRange(ctx context.Context, from, to time.Time) ([]*types.Appointment, error)
}

// SlotCalculator computes bookable half-hour slots for a calendar day.
type SlotCalculator struct {
	appointments AppointmentReader
	location     *time.Location
	windowOpen   time.Duration // minutes after midnight, as a duration
	windowClose  time.Duration
}

// NewSlotCalculator builds a calculator from the scheduling configuration.
// It fails when the timezone is unknown or the window bounds are not valid
// HH:MM labels on half-hour marks.
func NewSlotCalculator(cfg config.SchedulingConfig, appointments AppointmentReader) (*SlotCalculator, error) {
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling: unknown display timezone %q: %w", cfg.DisplayTimezone, err)
	}

	open, err := parseLabel(cfg.WindowOpen)
	if err != nil {
		return nil, fmt.Errorf("scheduling: invalid window open %q: %w", cfg.WindowOpen, err)
	}
	closeAt, err := parseLabel(cfg.WindowClose)
	if err != nil {
		return nil, fmt.Errorf("scheduling: invalid window close %q: %w", cfg.WindowClose, err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("scheduling: window close %q must be after open %q", cfg.WindowClose, cfg.WindowOpen)
	}

	return &SlotCalculator{
		appointments: appointments,
		location:     loc,
		windowOpen:   open,
		windowClose:  closeAt,
	}, nil
}

// parseLabel converts an "HH:MM" label into a duration past midnight.
// Only half-hour marks are accepted.
func parseLabel(label string) (time.Duration, error) {
	t, err := time.Parse(slotLabelFormat, label)
	if err != nil {
		return 0, err
	}
	if t.Minute()%30 != 0 {
		return 0, fmt.Errorf("label %q is not on a half-hour mark", label)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// SlotLabels returns every bookable slot label for a day in ascending order.
// The window is inclusive on both ends: the loop covers the half-hour marks
// strictly before close, and the closing label is appended explicitly.
func (c *SlotCalculator) SlotLabels() []string {
	var labels []string
	for at := c.windowOpen; at < c.windowClose; at += 30 * time.Minute {
		labels = append(labels, labelFor(at))
	}
	labels = append(labels, labelFor(c.windowClose))
	return labels
}

// labelFor renders a past-midnight offset as an HH:MM label.
func labelFor(at time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(at.Hours()), int(at.Minutes())%60)
}

// AvailableSlots returns the slot labels still open on the given calendar day
// (a date in the display timezone), in ascending order. Only appointments in
// the scheduled state block a slot; completed and cancelled ones never do.
func (c *SlotCalculator) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	// The day bounds are built from calendar components rather than a
	// 24-hour offset, so the window stays aligned with the wall clock on
	// days with a DST transition.
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.location)
	dayEnd := time.Date(date.Year(), date.Month(), date.Day()+1, 0, 0, 0, 0, c.location)

	booked, err := c.appointments.ListScheduledInRange(ctx, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, err
	}

	taken := make(map[string]struct{}, len(booked))
	for _, a := range booked {
		label := a.ScheduledDate.In(c.location).Format(slotLabelFormat)
		taken[label] = struct{}{}
	}

	var available []string
	for _, label := range c.SlotLabels() {
		if _, ok := taken[label]; ok {
			continue
		}
		available = append(available, label)
	}
	return available, nil
}

// SlotTime converts a slot label on a display-timezone calendar day into the
// UTC timestamp stored in the database. The instant is built from calendar
// components, so a label maps to the same wall-clock time on DST transition
// days. Labels outside the bookable window or off the half-hour grid are
// rejected.
func (c *SlotCalculator) SlotTime(date time.Time, label string) (time.Time, error) {
	at, err := parseLabel(label)
	if err != nil {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidSlot,
			fmt.Sprintf("slot %q is not a valid HH:MM half-hour label", label),
			err,
		)
	}
	if at < c.windowOpen || at > c.windowClose {
		return time.Time{}, types.NewAppError(
			types.ErrCodeValidationInvalidSlot,
			fmt.Sprintf("slot %q is outside the bookable window %s to %s", label, labelFor(c.windowOpen), labelFor(c.windowClose)),
			nil,
		)
	}

	hh := int(at / time.Hour)
	mm := int(at % time.Hour / time.Minute)
	return time.Date(date.Year(), date.Month(), date.Day(), hh, mm, 0, 0, c.location).UTC(), nil
}

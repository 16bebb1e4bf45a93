package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"alathletics/internal/core"
	"alathletics/internal/types"
)

// mockAvailabilityService implements AvailabilityService for testing.
type mockAvailabilityService struct {
	availableSlotsFn func(ctx context.Context, date time.Time) ([]string, error)
}

func (m *mockAvailabilityService) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	if m.availableSlotsFn != nil {
		return m.availableSlotsFn(ctx, date)
	}
	return []string{"08:00", "08:30", "09:00"}, nil
}

// mockBookingManager implements BookingManager for testing.
type mockBookingManager struct {
	bookFn   func(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error)
	cancelFn func(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error)
}

func (m *mockBookingManager) Book(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error) {
	if m.bookFn != nil {
		return m.bookFn(ctx, userID, date, slotLabel, checkIn, notes)
	}
	return &types.Appointment{
		ID:          "appt_test_1",
		UserID:      userID,
		Status:      types.AppointmentScheduled,
		CheckInType: checkIn,
	}, nil
}

func (m *mockBookingManager) Cancel(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, actor, appointmentID)
	}
	return &types.Appointment{ID: appointmentID, UserID: actor.UserID, Status: types.AppointmentCancelled}, nil
}

var (
	_ AvailabilityService = (*mockAvailabilityService)(nil)
	_ BookingManager      = (*mockBookingManager)(nil)
)

func newTestSchedulingHandler(availability AvailabilityService, bookings BookingManager) *SchedulingHandler {
	return NewSchedulingHandler(availability, bookings, core.NewValidator(), nil)
}

// requestWithURLParam attaches a chi route parameter to the request.
func requestWithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// =============================================================================
// GetAvailability Tests
// =============================================================================

func TestGetAvailability_Success(t *testing.T) {
	var gotDate time.Time
	availability := &mockAvailabilityService{
		availableSlotsFn: func(ctx context.Context, date time.Time) ([]string, error) {
			gotDate = date
			return []string{"10:00", "10:30"}, nil
		},
	}
	h := newTestSchedulingHandler(availability, &mockBookingManager{})

	req := makeRequest("GET", "/v1/appointments/availability?date=2026-09-10", nil, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.GetAvailability(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotDate.Format("2006-01-02") != "2026-09-10" {
		t.Errorf("expected date 2026-09-10, got %s", gotDate)
	}

	var resp struct {
		Data AvailabilityResponse `json:"data"`
	}
	parseJSONResponse(t, rr, &resp)
	if resp.Data.Date != "2026-09-10" {
		t.Errorf("expected echoed date, got %q", resp.Data.Date)
	}
	if len(resp.Data.Slots) != 2 {
		t.Errorf("expected 2 slots, got %d", len(resp.Data.Slots))
	}
}

func TestGetAvailability_MissingDate(t *testing.T) {
	h := newTestSchedulingHandler(&mockAvailabilityService{}, &mockBookingManager{})

	req := makeRequest("GET", "/v1/appointments/availability", nil, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.GetAvailability(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing date, got %d", rr.Code)
	}
}

func TestGetAvailability_MalformedDate(t *testing.T) {
	h := newTestSchedulingHandler(&mockAvailabilityService{}, &mockBookingManager{})

	req := makeRequest("GET", "/v1/appointments/availability?date=10-09-2026", nil, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.GetAvailability(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed date, got %d", rr.Code)
	}
}

func TestGetAvailability_NoActor(t *testing.T) {
	h := newTestSchedulingHandler(&mockAvailabilityService{}, &mockBookingManager{})

	req := makeRequest("GET", "/v1/appointments/availability?date=2026-09-10", nil, context.Background())
	rr := httptest.NewRecorder()

	h.GetAvailability(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

// =============================================================================
// Book Tests
// =============================================================================

func TestBook_Success(t *testing.T) {
	var gotSlot string
	var gotCheckIn types.CheckInType
	bookings := &mockBookingManager{
		bookFn: func(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error) {
			gotSlot = slotLabel
			gotCheckIn = checkIn
			return &types.Appointment{ID: "appt_test_1", UserID: userID, Status: types.AppointmentScheduled}, nil
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	body := BookRequest{Date: "2026-09-10", Slot: "10:00", CheckInType: types.CheckInVideo}
	req := makeRequest("POST", "/v1/appointments", body, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.Book(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotSlot != "10:00" || gotCheckIn != types.CheckInVideo {
		t.Errorf("expected 10:00/video, got %s/%s", gotSlot, gotCheckIn)
	}
}

func TestBook_RejectsUnknownCheckInType(t *testing.T) {
	h := newTestSchedulingHandler(&mockAvailabilityService{}, &mockBookingManager{})

	body := map[string]string{"date": "2026-09-10", "slot": "10:00", "check_in_type": "telepathy"}
	req := makeRequest("POST", "/v1/appointments", body, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.Book(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for unknown check-in type, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestBook_SlotTaken(t *testing.T) {
	bookings := &mockBookingManager{
		bookFn: func(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error) {
			return nil, types.NewAppError(types.ErrCodeConflictSlotTaken, "the requested slot is already booked", nil)
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	body := BookRequest{Date: "2026-09-10", Slot: "10:00", CheckInType: types.CheckInVideo}
	req := makeRequest("POST", "/v1/appointments", body, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.Book(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Error struct {
			Code types.ErrorCode `json:"code"`
		} `json:"error"`
	}
	parseJSONResponse(t, rr, &resp)
	if resp.Error.Code != types.ErrCodeConflictSlotTaken {
		t.Errorf("expected conflict_slot_taken, got %q", resp.Error.Code)
	}
}

func TestBook_InvalidSlot(t *testing.T) {
	bookings := &mockBookingManager{
		bookFn: func(ctx context.Context, userID string, date time.Time, slotLabel string, checkIn types.CheckInType, notes string) (*types.Appointment, error) {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidSlot, "slot is outside the bookable window", nil)
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	body := BookRequest{Date: "2026-09-10", Slot: "23:00", CheckInType: types.CheckInPhone}
	req := makeRequest("POST", "/v1/appointments", body, contextWithActor("user_1", types.RoleClient))
	rr := httptest.NewRecorder()

	h.Book(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

// =============================================================================
// Cancel Tests
// =============================================================================

func TestCancel_Success(t *testing.T) {
	var gotID string
	bookings := &mockBookingManager{
		cancelFn: func(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error) {
			gotID = appointmentID
			return &types.Appointment{ID: appointmentID, UserID: actor.UserID, Status: types.AppointmentCancelled}, nil
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	req := makeRequest("POST", "/v1/appointments/appt_1/cancel", nil, contextWithActor("user_1", types.RoleClient))
	req = requestWithURLParam(req, "id", "appt_1")
	rr := httptest.NewRecorder()

	h.Cancel(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotID != "appt_1" {
		t.Errorf("expected appt_1, got %q", gotID)
	}
}

func TestCancel_OtherUsersAppointment(t *testing.T) {
	bookings := &mockBookingManager{
		cancelFn: func(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error) {
			return nil, types.NewAppError(types.ErrCodePermissionRole, "appointment belongs to another user", nil)
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	req := makeRequest("POST", "/v1/appointments/appt_1/cancel", nil, contextWithActor("user_2", types.RoleClient))
	req = requestWithURLParam(req, "id", "appt_1")
	rr := httptest.NewRecorder()

	h.Cancel(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCancel_NotFound(t *testing.T) {
	bookings := &mockBookingManager{
		cancelFn: func(ctx context.Context, actor types.Actor, appointmentID string) (*types.Appointment, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAppointment, "appointment not found", nil)
		},
	}
	h := newTestSchedulingHandler(&mockAvailabilityService{}, bookings)

	req := makeRequest("POST", "/v1/appointments/appt_missing/cancel", nil, contextWithActor("user_1", types.RoleClient))
	req = requestWithURLParam(req, "id", "appt_missing")
	rr := httptest.NewRecorder()

	h.Cancel(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"alathletics/internal/core"
	"alathletics/internal/types"
)

// maxEnrichmentConcurrency bounds the parallel per-user lookups during
// subscription list enrichment.
const maxEnrichmentConcurrency = 8

// SubscriptionLister is the read surface for the admin listing. Implemented
// by *db.SubscriptionRepository.
type SubscriptionLister interface {
	ListByStatus(ctx context.Context, status types.SubscriptionStatus, limit int) ([]*types.Subscription, error)
}

// SessionCounter counts a user's scheduled sessions. Implemented by
// *db.AppointmentRepository.
type SessionCounter interface {
	CountScheduledByUser(ctx context.Context, userID string) (int, error)
}

// SessionCompleter marks a session as completed. Implemented by
// *scheduling.BookingService.
type SessionCompleter interface {
	Complete(ctx context.Context, appointmentID string) (*types.Appointment, error)
}

// AdminHandler serves the back-office endpoints. All routes require the
// admin role.
type AdminHandler struct {
	subs     SubscriptionLister
	sessions SessionCounter
	bookings SessionCompleter
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(subs SubscriptionLister, sessions SessionCounter, bookings SessionCompleter, l *slog.Logger) *AdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AdminHandler{
		subs:     subs,
		sessions: sessions,
		bookings: bookings,
		logger:   l,
	}
}

// RegisterRoutes mounts the admin endpoints.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/subscriptions", h.ListSubscriptions)
	r.Post("/admin/appointments/{id}/complete", h.CompleteAppointment)
}

// ListSubscriptions handles GET /v1/admin/subscriptions?status=&limit=.
//
// Each row is enriched with the user's scheduled-session count; the lookups
// fan out concurrently. A failed lookup drops that row from the response
// with a warning rather than failing the whole batch.
func (h *AdminHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.RequireAdmin(w, r); !ok {
		return
	}

	status := types.SubscriptionStatus(r.URL.Query().Get("status"))

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 200 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a number between 1 and 200",
				nil,
			))
			return
		}
		limit = parsed
	}

	subs, err := h.subs.ListByStatus(r.Context(), status, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summaries := make([]*types.SubscriptionSummary, len(subs))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(maxEnrichmentConcurrency)

	for i, sub := range subs {
		g.Go(func() error {
			count, countErr := h.sessions.CountScheduledByUser(ctx, sub.UserID)
			if countErr != nil {
				// Drop the row, keep the batch.
				h.logger.WarnContext(ctx, "failed to enrich subscription row",
					"user_id", sub.UserID,
					"subscription_id", sub.ID,
					"error", countErr,
				)
				return nil
			}
			mu.Lock()
			summaries[i] = &types.SubscriptionSummary{
				Subscription:      *sub,
				ScheduledSessions: count,
			}
			mu.Unlock()
			return nil
		})
	}

	// Enrichment errors are swallowed per-row; Wait only propagates context
	// cancellation.
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}

	result := make([]*types.SubscriptionSummary, 0, len(summaries))
	for _, s := range summaries {
		if s != nil {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// CompleteAppointment handles POST /v1/admin/appointments/{id}/complete.
func (h *AdminHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	if _, ok := core.RequireAdmin(w, r); !ok {
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

	appointment, err := h.bookings.Complete(r.Context(), appointmentID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: appointment})
}

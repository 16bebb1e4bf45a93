// Package handlers contains the HTTP handler implementations for the
// coaching platform API. Each handler defines the service interfaces it
// needs locally and receives implementations through its constructor, which
// keeps handlers decoupled from concrete service types and easy to mock.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"alathletics/internal/core"
	"alathletics/internal/types"
)

// SubscriptionSyncer reconciles local subscription state with the billing
// provider. Implemented by *billing.Reconciler.
type SubscriptionSyncer interface {
	Reconcile(ctx context.Context, userID string) (*types.SyncResult, error)
}

// PlanChanger moves a subscription between plans. Implemented by
// *billing.Orchestrator.
type PlanChanger interface {
	ChangePlan(ctx context.Context, userID string, targetPlan types.PlanID, period types.BillingPeriod) (*types.PlanChangeResult, error)
}

// SubscriptionReader loads the local subscription mirror. Implemented by
// *db.SubscriptionRepository.
type SubscriptionReader interface {
	GetLatestByUser(ctx context.Context, userID string) (*types.Subscription, error)
}

// ChangePlanRequest is the request body for POST /v1/billing/plan.
type ChangePlanRequest struct {
	Plan          types.PlanID        `json:"plan" validate:"required,oneof=foundation growth elite"`
	BillingPeriod types.BillingPeriod `json:"billing_period" validate:"required,oneof=monthly semiannual annual"`
}

// BillingHandler serves the subscription endpoints.
type BillingHandler struct {
	syncer    SubscriptionSyncer
	changer   PlanChanger
	subs      SubscriptionReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(
	syncer SubscriptionSyncer,
	changer PlanChanger,
	subs SubscriptionReader,
	v *core.Validator,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{
		syncer:    syncer,
		changer:   changer,
		subs:      subs,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts the billing endpoints.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/billing/subscription", h.GetSubscription)
	r.Post("/billing/sync", h.SyncSubscription)
	r.Post("/billing/plan", h.ChangePlan)
}

// GetSubscription handles GET /v1/billing/subscription.
//
// Before responding it runs an opportunistic reconcile so a status change on
// the provider side (webhook lag, missed event) is repaired on display. A
// provider outage degrades to the last known local state rather than failing
// the read.
func (h *BillingHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.Reconcile(r.Context(), actor.UserID)
	if err == nil {
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result.Subscription})
		return
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamStripe {
		h.logger.WarnContext(r.Context(), "provider unavailable; serving local subscription state",
			"user_id", actor.UserID,
			"error", err,
		)
		local, localErr := h.subs.GetLatestByUser(r.Context(), actor.UserID)
		if localErr != nil {
			core.Error(w, r, localErr)
			return
		}
		core.JSON(w, r, http.StatusOK, core.APIResponse{Data: local})
		return
	}

	core.Error(w, r, err)
}

// SyncSubscription handles POST /v1/billing/sync: an explicit reconcile that
// returns the observed transition.
func (h *BillingHandler) SyncSubscription(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	result, err := h.syncer.Reconcile(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// ChangePlan handles POST /v1/billing/plan.
func (h *BillingHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req ChangePlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.changer.ChangePlan(r.Context(), actor.UserID, req.Plan, req.BillingPeriod)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

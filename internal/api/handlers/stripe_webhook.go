package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"alathletics/internal/core"
	"alathletics/internal/types"
)

// maxWebhookBodySize caps webhook payloads at 256 KB; Stripe events are far
// smaller.
const maxWebhookBodySize = 256 << 10

// WebhookVerifier validates a webhook payload signature. Implemented by
// *external.StripeVerifier.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// CustomerResolver maps a provider customer id to the local subscription.
// Implemented by *db.SubscriptionRepository.
type CustomerResolver interface {
	GetLatestByRemoteCustomer(ctx context.Context, customerID string) (*types.Subscription, error)
}

// RemoteSubscriptionFetcher retrieves provider subscriptions for the
// checkout-completion path. Implemented by *external.StripeClient.
type RemoteSubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*types.RemoteSubscription, error)
}

// PriceResolver maps a provider price id back to plan information.
// Implemented by *billing.Registry.
type PriceResolver interface {
	PlanForPriceID(priceID string) (*types.PlanInfo, error)
}

// CheckoutRecorder persists the subscription a completed checkout produced.
// Implemented by *db.PlanChangeStore.
type CheckoutRecorder interface {
	ApplyCheckoutCompletion(ctx context.Context, sub *types.Subscription) error
}

// StripeWebhookHandler ingests billing provider events. Signature-verified
// events that affect subscription state are funneled into the same
// reconciliation procedure the pull endpoints use, so webhook-driven and
// read-driven sync cannot diverge.
type StripeWebhookHandler struct {
	verifier  WebhookVerifier
	secret    string
	resolver  CustomerResolver
	syncer    SubscriptionSyncer
	remote    RemoteSubscriptionFetcher
	prices    PriceResolver
	checkouts CheckoutRecorder
	logger    *slog.Logger
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier WebhookVerifier,
	secret string,
	resolver CustomerResolver,
	syncer SubscriptionSyncer,
	remote RemoteSubscriptionFetcher,
	prices PriceResolver,
	checkouts CheckoutRecorder,
	l *slog.Logger,
) *StripeWebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:  verifier,
		secret:    secret,
		resolver:  resolver,
		syncer:    syncer,
		remote:    remote,
		prices:    prices,
		checkouts: checkouts,
		logger:    l,
	}
}

// RegisterRoutes mounts the webhook endpoint. It lives outside /v1 and is
// authenticated by signature, not by actor.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.HandleEvent)
}

// stripeEvent is the minimal event envelope the handler needs.
type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// eventObject carries the fields shared by the objects this handler reads:
// subscriptions, invoices, and checkout sessions all expose "customer".
type eventObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
}

// HandleEvent handles POST /webhooks/stripe.
//
// A bad signature is a 400 and nothing runs. Unknown event types are
// acknowledged with 200 so the provider stops retrying them. Processing
// failures return 500 so the provider retries; the procedures behind this
// handler are idempotent, making retries safe.
func (h *StripeWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read webhook payload",
			err,
		))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, signature, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid webhook signature",
			err,
		))
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed webhook event",
			err,
		))
		return
	}

	var object eventObject
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed webhook event object",
			err,
		))
		return
	}

	switch event.Type {
	case "customer.subscription.updated",
		"customer.subscription.deleted",
		"invoice.payment_failed":
		err = h.reconcileByCustomer(r.Context(), event, object.Customer)
	case "checkout.session.completed":
		err = h.recordCheckout(r.Context(), event, object)
	default:
		h.logger.DebugContext(r.Context(), "ignoring webhook event",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}

	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: map[string]string{"received": event.ID}})
}

// reconcileByCustomer resolves the affected user from the provider customer
// id and runs the standard reconcile. An event for a customer we have no
// record of is acknowledged and logged, not retried.
func (h *StripeWebhookHandler) reconcileByCustomer(ctx context.Context, event stripeEvent, customerID string) error {
	if customerID == "" {
		h.logger.WarnContext(ctx, "webhook event missing customer id",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}

	local, err := h.resolver.GetLatestByRemoteCustomer(ctx, customerID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			h.logger.WarnContext(ctx, "webhook event for unknown customer",
				"event_id", event.ID,
				"customer_id", customerID,
			)
			return nil
		}
		return err
	}

	result, err := h.syncer.Reconcile(ctx, local.UserID)
	if err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "webhook reconcile complete",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id", local.UserID,
		"changed", result.Changed,
		"status", result.NewStatus,
	)
	return nil
}

// recordCheckout turns a completed checkout session into the local
// subscription row plus profile mirror. The session's client_reference_id
// carries the user id set when the checkout was created.
func (h *StripeWebhookHandler) recordCheckout(ctx context.Context, event stripeEvent, object eventObject) error {
	if object.ClientReferenceID == "" || object.Subscription == "" {
		h.logger.WarnContext(ctx, "checkout event missing user or subscription reference",
			"event_id", event.ID,
		)
		return nil
	}

	remote, err := h.remote.GetSubscription(ctx, object.Subscription)
	if err != nil {
		return err
	}

	plan, err := h.prices.PlanForPriceID(remote.PriceID)
	if err != nil {
		// A checkout for a price outside the catalog is a configuration
		// problem; retrying will not fix it.
		h.logger.ErrorContext(ctx, "checkout completed with unknown price",
			"event_id", event.ID,
			"price_id", remote.PriceID,
			"error", err,
		)
		return nil
	}

	now := time.Now().UTC()
	sub := &types.Subscription{
		ID:                   uuid.NewString(),
		UserID:               object.ClientReferenceID,
		RemoteCustomerID:     remote.CustomerID,
		RemoteSubscriptionID: remote.ID,
		PlanID:               plan.PlanID,
		PlanName:             plan.DisplayName,
		Status:               remote.Status,
		CurrentPeriodStart:   remote.CurrentPeriodStart,
		CurrentPeriodEnd:     remote.CurrentPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := h.checkouts.ApplyCheckoutCompletion(ctx, sub); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "checkout recorded",
		"event_id", event.ID,
		"user_id", sub.UserID,
		"plan", sub.PlanID,
		"subscription_id", sub.ID,
	)
	return nil
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"alathletics/internal/types"
)

// mockWebhookVerifier implements WebhookVerifier for testing.
type mockWebhookVerifier struct {
	err error
}

func (m *mockWebhookVerifier) Verify(payload []byte, header string, secret string) error {
	return m.err
}

// mockCustomerResolver implements CustomerResolver for testing.
type mockCustomerResolver struct {
	resolveFn func(ctx context.Context, customerID string) (*types.Subscription, error)
}

func (m *mockCustomerResolver) GetLatestByRemoteCustomer(ctx context.Context, customerID string) (*types.Subscription, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, customerID)
	}
	return testSubscription("user_1"), nil
}

// mockRemoteSubscriptionFetcher implements RemoteSubscriptionFetcher for testing.
type mockRemoteSubscriptionFetcher struct {
	fetchFn func(ctx context.Context, subscriptionID string) (*types.RemoteSubscription, error)
}

func (m *mockRemoteSubscriptionFetcher) GetSubscription(ctx context.Context, subscriptionID string) (*types.RemoteSubscription, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, subscriptionID)
	}
	return &types.RemoteSubscription{
		ID:                 subscriptionID,
		CustomerID:         "cus_new",
		Status:             types.SubStatusActive,
		PriceID:            "price_gro_m",
		ItemID:             "si_new",
		CurrentPeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// mockPriceResolver implements PriceResolver for testing.
type mockPriceResolver struct {
	resolveFn func(priceID string) (*types.PlanInfo, error)
}

func (m *mockPriceResolver) PlanForPriceID(priceID string) (*types.PlanInfo, error) {
	if m.resolveFn != nil {
		return m.resolveFn(priceID)
	}
	return &types.PlanInfo{PlanID: types.PlanGrowth, DisplayName: "Growth"}, nil
}

// mockCheckoutRecorder implements CheckoutRecorder for testing.
type mockCheckoutRecorder struct {
	applyFn func(ctx context.Context, sub *types.Subscription) error
	applied *types.Subscription
}

func (m *mockCheckoutRecorder) ApplyCheckoutCompletion(ctx context.Context, sub *types.Subscription) error {
	m.applied = sub
	if m.applyFn != nil {
		return m.applyFn(ctx, sub)
	}
	return nil
}

var (
	_ WebhookVerifier           = (*mockWebhookVerifier)(nil)
	_ CustomerResolver          = (*mockCustomerResolver)(nil)
	_ RemoteSubscriptionFetcher = (*mockRemoteSubscriptionFetcher)(nil)
	_ PriceResolver             = (*mockPriceResolver)(nil)
	_ CheckoutRecorder          = (*mockCheckoutRecorder)(nil)
)

type webhookDeps struct {
	verifier  *mockWebhookVerifier
	resolver  *mockCustomerResolver
	syncer    *mockSubscriptionSyncer
	remote    *mockRemoteSubscriptionFetcher
	prices    *mockPriceResolver
	checkouts *mockCheckoutRecorder
}

func newTestWebhookHandler(d webhookDeps) *StripeWebhookHandler {
	if d.verifier == nil {
		d.verifier = &mockWebhookVerifier{}
	}
	if d.resolver == nil {
		d.resolver = &mockCustomerResolver{}
	}
	if d.syncer == nil {
		d.syncer = &mockSubscriptionSyncer{}
	}
	if d.remote == nil {
		d.remote = &mockRemoteSubscriptionFetcher{}
	}
	if d.prices == nil {
		d.prices = &mockPriceResolver{}
	}
	if d.checkouts == nil {
		d.checkouts = &mockCheckoutRecorder{}
	}
	return NewStripeWebhookHandler(d.verifier, "whsec_test", d.resolver, d.syncer, d.remote, d.prices, d.checkouts, nil)
}

func postWebhook(h *StripeWebhookHandler, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rr := httptest.NewRecorder()
	h.HandleEvent(rr, req)
	return rr
}

const subscriptionUpdatedEvent = `{
	"id": "evt_1",
	"type": "customer.subscription.updated",
	"data": {"object": {"id": "sub_stripe_123", "customer": "cus_123", "status": "past_due"}}
}`

const checkoutCompletedEvent = `{
	"id": "evt_2",
	"type": "checkout.session.completed",
	"data": {"object": {"id": "cs_1", "customer": "cus_new", "subscription": "sub_stripe_new", "client_reference_id": "user_9"}}
}`

func TestHandleEvent_BadSignature(t *testing.T) {
	syncer := &mockSubscriptionSyncer{}
	h := newTestWebhookHandler(webhookDeps{
		verifier: &mockWebhookVerifier{err: errors.New("signature mismatch")},
		syncer:   syncer,
	})

	rr := postWebhook(h, subscriptionUpdatedEvent)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for bad signature, got %d", rr.Code)
	}
	if syncer.calls != 0 {
		t.Errorf("nothing must run on a bad signature, got %d reconcile calls", syncer.calls)
	}
}

func TestHandleEvent_SubscriptionUpdated_TriggersReconcile(t *testing.T) {
	var reconciledUser string
	syncer := &mockSubscriptionSyncer{
		reconcileFn: func(ctx context.Context, userID string) (*types.SyncResult, error) {
			reconciledUser = userID
			sub := testSubscription(userID)
			return &types.SyncResult{PreviousStatus: types.SubStatusActive, NewStatus: types.SubStatusPastDue, Changed: true, Subscription: sub}, nil
		},
	}
	h := newTestWebhookHandler(webhookDeps{syncer: syncer})

	rr := postWebhook(h, subscriptionUpdatedEvent)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if reconciledUser != "user_1" {
		t.Errorf("expected reconcile for user_1, got %q", reconciledUser)
	}
}

func TestHandleEvent_UnknownCustomer_Acked(t *testing.T) {
	resolver := &mockCustomerResolver{
		resolveFn: func(ctx context.Context, customerID string) (*types.Subscription, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for billing customer", nil)
		},
	}
	syncer := &mockSubscriptionSyncer{}
	h := newTestWebhookHandler(webhookDeps{resolver: resolver, syncer: syncer})

	rr := postWebhook(h, subscriptionUpdatedEvent)

	// Retrying an event for a customer we do not know cannot help.
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 ack for unknown customer, got %d", rr.Code)
	}
	if syncer.calls != 0 {
		t.Errorf("expected no reconcile, got %d calls", syncer.calls)
	}
}

func TestHandleEvent_ReconcileFailure_Returns500ForRetry(t *testing.T) {
	syncer := &mockSubscriptionSyncer{
		reconcileFn: func(ctx context.Context, userID string) (*types.SyncResult, error) {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "write failed", nil)
		},
	}
	h := newTestWebhookHandler(webhookDeps{syncer: syncer})

	rr := postWebhook(h, subscriptionUpdatedEvent)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 so the provider retries, got %d", rr.Code)
	}
}

func TestHandleEvent_UnknownEventType_Acked(t *testing.T) {
	syncer := &mockSubscriptionSyncer{}
	h := newTestWebhookHandler(webhookDeps{syncer: syncer})

	rr := postWebhook(h, `{"id": "evt_3", "type": "customer.created", "data": {"object": {"id": "cus_x"}}}`)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 ack for unhandled event type, got %d", rr.Code)
	}
	if syncer.calls != 0 {
		t.Errorf("expected no reconcile for unhandled event, got %d calls", syncer.calls)
	}
}

func TestHandleEvent_CheckoutCompleted_RecordsSubscription(t *testing.T) {
	checkouts := &mockCheckoutRecorder{}
	h := newTestWebhookHandler(webhookDeps{checkouts: checkouts})

	rr := postWebhook(h, checkoutCompletedEvent)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if checkouts.applied == nil {
		t.Fatal("expected checkout completion to be applied")
	}
	if checkouts.applied.UserID != "user_9" {
		t.Errorf("expected user_9 from client_reference_id, got %q", checkouts.applied.UserID)
	}
	if checkouts.applied.RemoteSubscriptionID != "sub_stripe_new" {
		t.Errorf("expected remote subscription binding, got %q", checkouts.applied.RemoteSubscriptionID)
	}
	if checkouts.applied.PlanID != types.PlanGrowth {
		t.Errorf("expected plan resolved from price id, got %q", checkouts.applied.PlanID)
	}
	if checkouts.applied.ID == "" {
		t.Error("expected a generated local subscription id")
	}
}

func TestHandleEvent_CheckoutCompleted_UnknownPrice_Acked(t *testing.T) {
	prices := &mockPriceResolver{
		resolveFn: func(priceID string) (*types.PlanInfo, error) {
			return nil, types.NewAppError(types.ErrCodeBillingUnknownPrice, "price id does not belong to the plan catalog", nil)
		},
	}
	checkouts := &mockCheckoutRecorder{}
	h := newTestWebhookHandler(webhookDeps{prices: prices, checkouts: checkouts})

	rr := postWebhook(h, checkoutCompletedEvent)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 ack for catalog mismatch, got %d", rr.Code)
	}
	if checkouts.applied != nil {
		t.Error("expected nothing persisted for an unknown price")
	}
}

func TestHandleEvent_CheckoutCompleted_MissingReferences_Acked(t *testing.T) {
	checkouts := &mockCheckoutRecorder{}
	h := newTestWebhookHandler(webhookDeps{checkouts: checkouts})

	rr := postWebhook(h, `{
		"id": "evt_4",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "customer": "cus_new"}}
	}`)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 ack, got %d", rr.Code)
	}
	if checkouts.applied != nil {
		t.Error("expected nothing persisted without a subscription reference")
	}
}

func TestHandleEvent_MalformedEvent(t *testing.T) {
	h := newTestWebhookHandler(webhookDeps{})

	rr := postWebhook(h, "{not json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed event, got %d", rr.Code)
	}
}

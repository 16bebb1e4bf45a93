package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alathletics/internal/types"
)

// SubscriptionStore is the persistence surface the reconciler needs.
// Satisfied by *db.SubscriptionRepository.
type SubscriptionStore interface {
	GetLatestByUser(ctx context.Context, userID string) (*types.Subscription, error)
	UpdateSyncState(ctx context.Context, id string, status types.SubscriptionStatus, periodStart, periodEnd time.Time) error
}

// SubscriptionFetcher retrieves a subscription from the billing provider.
// Satisfied by *external.StripeClient.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*types.RemoteSubscription, error)
}

// Reconciler brings the local subscription mirror into agreement with the
// billing provider. The provider is authoritative for status and period
// bounds; the reconciler never touches plan fields.
type Reconciler struct {
	subs   SubscriptionStore
	remote SubscriptionFetcher
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(subs SubscriptionStore, remote SubscriptionFetcher, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{subs: subs, remote: remote, logger: logger}
}

// Reconcile refreshes the user's local subscription state from the provider.
//
// The procedure is idempotent: when local and remote status already agree it
// performs zero writes and reports Changed=false. On a mismatch it performs
// exactly one write, overwriting status and the period bounds with the
// provider's values.
//
// A provider outage surfaces as an upstream error, never as NotFound, so
// callers can distinguish "the subscription is gone" from "the provider is
// unreachable".
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (*types.SyncResult, error) {
	local, err := r.subs.GetLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if local.RemoteSubscriptionID == "" {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			"subscription record is not bound to a provider subscription",
			nil,
		)
	}

	remote, err := r.remote.GetSubscription(ctx, local.RemoteSubscriptionID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			// The provider deleted the subscription outright. Treat the
			// record as gone rather than unreachable.
			return nil, err
		}
		return nil, types.NewAppError(
			types.ErrCodeUpstreamStripe,
			"billing provider unavailable during sync",
			err,
		)
	}

	if remote.Status == local.Status {
		return &types.SyncResult{
			PreviousStatus: local.Status,
			NewStatus:      local.Status,
			Changed:        false,
			Subscription:   local,
		}, nil
	}

	if err := r.subs.UpdateSyncState(ctx, local.ID, remote.Status, remote.CurrentPeriodStart, remote.CurrentPeriodEnd); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "subscription status reconciled",
		"user_id", userID,
		"subscription_id", local.ID,
		"previous_status", local.Status,
		"new_status", remote.Status,
	)

	previous := local.Status
	local.Status = remote.Status
	local.CurrentPeriodStart = remote.CurrentPeriodStart
	local.CurrentPeriodEnd = remote.CurrentPeriodEnd

	return &types.SyncResult{
		PreviousStatus: previous,
		NewStatus:      remote.Status,
		Changed:        true,
		Subscription:   local,
	}, nil
}

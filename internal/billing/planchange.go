package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"alathletics/internal/types"
)

// ActiveSubscriptionStore is the read surface the orchestrator needs.
// Satisfied by *db.SubscriptionRepository.
type ActiveSubscriptionStore interface {
	GetActiveByUser(ctx context.Context, userID string) (*types.Subscription, error)
	CountActiveByUser(ctx context.Context, userID string) (int, error)
}

// ProfileStore resolves the billing-provider customer binding.
// Satisfied by *db.ProfileRepository.
type ProfileStore interface {
	GetByUser(ctx context.Context, userID string) (*types.UserProfile, error)
}

// RemoteBilling is the provider surface the orchestrator needs.
// Satisfied by *external.StripeClient.
type RemoteBilling interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*types.RemoteSubscription, error)
	UpdateSubscriptionItemPrice(ctx context.Context, subscriptionID, itemID, priceID string) (*types.RemoteSubscription, error)
}

// PlanChangeApplier persists both local rows of a plan change atomically.
// Satisfied by *db.PlanChangeStore.
type PlanChangeApplier interface {
	ApplyPlanChange(
		ctx context.Context,
		subscriptionID string,
		userID string,
		plan types.PlanID,
		planName string,
		status types.SubscriptionStatus,
		periodStart, periodEnd time.Time,
		expectedUpdatedAt time.Time,
	) error
}

// Orchestrator coordinates upgrades and downgrades: resolve the target price,
// move the provider subscription, then persist the local rows. The provider
// call happens first so a rejection (declined card, unknown price) aborts
// before any local state changes.
type Orchestrator struct {
	subs     ActiveSubscriptionStore
	profiles ProfileStore
	registry *Registry
	remote   RemoteBilling
	applier  PlanChangeApplier
	logger   *slog.Logger
}

// NewOrchestrator creates a plan-change Orchestrator.
func NewOrchestrator(
	subs ActiveSubscriptionStore,
	profiles ProfileStore,
	registry *Registry,
	remote RemoteBilling,
	applier PlanChangeApplier,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		subs:     subs,
		profiles: profiles,
		registry: registry,
		remote:   remote,
		applier:  applier,
		logger:   logger,
	}
}

// ChangePlan moves the user's active subscription to the target plan on the
// given billing period. Proration is always disabled: the new price takes
// effect immediately but billing changes only from the next cycle.
//
// A user without an active subscription gets billing_no_active_subscription
// and no provider call is made; canceled subscriptions are never resurrected
// through this path.
func (o *Orchestrator) ChangePlan(
	ctx context.Context,
	userID string,
	targetPlan types.PlanID,
	period types.BillingPeriod,
) (*types.PlanChangeResult, error) {
	local, err := o.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundSubscription {
			return nil, types.NewAppError(
				types.ErrCodeBillingNoActiveSubscription,
				"no active subscription to change; start a new checkout instead",
				nil,
			)
		}
		return nil, err
	}

	if count, countErr := o.subs.CountActiveByUser(ctx, userID); countErr == nil && count > 1 {
		o.logger.WarnContext(ctx, "user has multiple active subscription rows; proceeding against the newest",
			"user_id", userID,
			"active_count", count,
		)
	}

	priceID, err := o.registry.PriceID(targetPlan, period)
	if err != nil {
		return nil, err
	}

	profile, err := o.profiles.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.RemoteCustomerID == "" {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundProfile,
			"profile has no billing customer binding",
			nil,
		)
	}

	remoteSub, err := o.remote.GetSubscription(ctx, local.RemoteSubscriptionID)
	if err != nil {
		return nil, err
	}

	updated, err := o.remote.UpdateSubscriptionItemPrice(ctx, remoteSub.ID, remoteSub.ItemID, priceID)
	if err != nil {
		// Remote rejection: nothing local has been written, remote and local
		// still agree.
		return nil, err
	}

	planName := o.registry.DisplayName(targetPlan)
	err = o.applier.ApplyPlanChange(
		ctx,
		local.ID,
		userID,
		targetPlan,
		planName,
		updated.Status,
		updated.CurrentPeriodStart,
		updated.CurrentPeriodEnd,
		local.UpdatedAt,
	)
	if err != nil {
		// The provider already moved; the next reconcile repairs the local
		// side. Surface the error so the caller knows the response is stale.
		o.logger.ErrorContext(ctx, "plan change persisted remotely but local write failed",
			"user_id", userID,
			"subscription_id", local.ID,
			"target_plan", targetPlan,
			"error", err,
		)
		return nil, err
	}

	o.logger.InfoContext(ctx, "plan changed",
		"user_id", userID,
		"subscription_id", local.ID,
		"previous_plan", local.PlanID,
		"new_plan", targetPlan,
		"billing_period", period,
	)

	local.PlanID = targetPlan
	local.PlanName = planName
	local.Status = updated.Status
	local.CurrentPeriodStart = updated.CurrentPeriodStart
	local.CurrentPeriodEnd = updated.CurrentPeriodEnd

	return &types.PlanChangeResult{
		NewPlan:      targetPlan,
		Subscription: local,
	}, nil
}

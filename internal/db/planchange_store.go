package db

import (
	"context"
	"time"

	"alathletics/internal/types"

	"github.com/jackc/pgx/v5"
)

// PlanChangeStore performs the multi-row billing writes that must land
// atomically: the subscription row and the profile's denormalized mirror
// always move together inside one transaction.
type PlanChangeStore struct {
	pool Beginner
}

// NewPlanChangeStore creates a PlanChangeStore on a transaction-capable
// connection source (in practice *pgxpool.Pool).
func NewPlanChangeStore(pool Beginner) *PlanChangeStore {
	return &PlanChangeStore{pool: pool}
}

// ApplyPlanChange writes a plan change onto the subscription row and mirrors
// it onto the profile in a single transaction. The subscription write is
// conditional on expectedUpdatedAt; a conflict rolls back both writes and
// surfaces conflict_concurrent_modification.
func (s *PlanChangeStore) ApplyPlanChange(
	ctx context.Context,
	subscriptionID string,
	userID string,
	plan types.PlanID,
	planName string,
	status types.SubscriptionStatus,
	periodStart, periodEnd time.Time,
	expectedUpdatedAt time.Time,
) error {
	return InTx(ctx, s.pool, func(tx pgx.Tx) error {
		subs := NewSubscriptionRepository(tx)
		if err := subs.UpdatePlan(ctx, subscriptionID, plan, planName, periodStart, periodEnd, expectedUpdatedAt); err != nil {
			return err
		}
		profiles := NewProfileRepository(tx)
		return profiles.UpdatePlanMirror(ctx, userID, plan, status)
	})
}

// ApplyCheckoutCompletion inserts the subscription row produced by a
// completed checkout and updates the profile's customer binding and plan
// mirror, all in one transaction.
func (s *PlanChangeStore) ApplyCheckoutCompletion(ctx context.Context, sub *types.Subscription) error {
	return InTx(ctx, s.pool, func(tx pgx.Tx) error {
		subs := NewSubscriptionRepository(tx)
		if err := subs.Create(ctx, sub); err != nil {
			return err
		}
		profiles := NewProfileRepository(tx)
		if err := profiles.UpdateRemoteCustomerID(ctx, sub.UserID, sub.RemoteCustomerID); err != nil {
			return err
		}
		return profiles.UpdatePlanMirror(ctx, sub.UserID, sub.PlanID, sub.Status)
	})
}

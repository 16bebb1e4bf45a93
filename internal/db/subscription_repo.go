package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"alathletics/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table.
// Rows are never hard-deleted; cancellation is a status change, so a user
// accumulates historical rows and queries pick the most recently updated one.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// subscriptionColumns defines the standard set of columns selected for
// subscription queries. Used consistently across all query methods to avoid
// column drift.
const subscriptionColumns = `s.id, s.user_id, s.remote_customer_id, s.remote_subscription_id,
	s.plan_id, s.plan_name, s.status, s.current_period_start, s.current_period_end,
	s.created_at, s.updated_at`

// scanSubscription scans a single subscription row into a types.Subscription.
// The columns must match the order defined in subscriptionColumns. Remote ids
// may be NULL for rows created before checkout completed.
func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	var (
		remoteCustomerID     *string
		remoteSubscriptionID *string
	)
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&remoteCustomerID,
		&remoteSubscriptionID,
		&s.PlanID,
		&s.PlanName,
		&s.Status,
		&s.CurrentPeriodStart,
		&s.CurrentPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if remoteCustomerID != nil {
		s.RemoteCustomerID = *remoteCustomerID
	}
	if remoteSubscriptionID != nil {
		s.RemoteSubscriptionID = *remoteSubscriptionID
	}
	return &s, nil
}

// GetLatestByUser retrieves the most-recently-updated subscription row for a
// user, regardless of status. Returns not_found_subscription if the user has
// never subscribed.
func (r *SubscriptionRepository) GetLatestByUser(ctx context.Context, userID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.user_id = $1
		 ORDER BY s.updated_at DESC
		 LIMIT 1`,
		userID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription found for user", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// GetActiveByUser retrieves the user's active subscription. When more than one
// active row exists (a tolerated but anomalous state) the most recently
// updated one wins; callers that care use CountActiveByUser to detect it.
// Returns not_found_subscription if the user has no active row.
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.user_id = $1 AND s.status = $2
		 ORDER BY s.updated_at DESC
		 LIMIT 1`,
		userID,
		types.SubStatusActive,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no active subscription for user", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve active subscription", err)
	}
	return s, nil
}

// CountActiveByUser returns how many active rows the user currently has.
// The intended invariant is at most one; the plan-change flow logs a warning
// when this returns more.
func (r *SubscriptionRepository) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1 AND status = $2`,
		userID,
		types.SubStatusActive,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count active subscriptions", err)
	}
	return n, nil
}

// GetLatestByRemoteCustomer retrieves the most-recently-updated subscription
// row bound to a billing-provider customer id. Used by the webhook path to
// resolve an event back to a local record.
func (r *SubscriptionRepository) GetLatestByRemoteCustomer(ctx context.Context, customerID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.remote_customer_id = $1
		 ORDER BY s.updated_at DESC
		 LIMIT 1`,
		customerID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "no subscription for billing customer", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// Create inserts a new subscription row. Called when a checkout completes.
func (r *SubscriptionRepository) Create(ctx context.Context, s *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions
		   (id, user_id, remote_customer_id, remote_subscription_id, plan_id, plan_name,
		    status, current_period_start, current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID,
		s.UserID,
		s.RemoteCustomerID,
		s.RemoteSubscriptionID,
		s.PlanID,
		s.PlanName,
		s.Status,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert subscription", err)
	}
	return nil
}

// UpdateSyncState overwrites status and period bounds with the remote
// provider's values. This is the reconciler's single write; plan fields are
// deliberately untouched on this path.
func (r *SubscriptionRepository) UpdateSyncState(
	ctx context.Context,
	id string,
	status types.SubscriptionStatus,
	periodStart, periodEnd time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $1,
		     current_period_start = $2,
		     current_period_end = $3,
		     updated_at = NOW()
		 WHERE id = $4`,
		status,
		periodStart,
		periodEnd,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription sync state", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription row vanished during sync", nil)
	}
	return nil
}

// UpdatePlan persists a plan change onto the subscription row.
//
// The write is conditional on the row's updated_at still matching the token
// the caller read. A concurrent plan change that already moved the row makes
// this return conflict_concurrent_modification so the losing writer fails
// explicitly instead of silently overwriting.
func (r *SubscriptionRepository) UpdatePlan(
	ctx context.Context,
	id string,
	planID types.PlanID,
	planName string,
	periodStart, periodEnd time.Time,
	expectedUpdatedAt time.Time,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET plan_id = $1,
		     plan_name = $2,
		     current_period_start = $3,
		     current_period_end = $4,
		     updated_at = NOW()
		 WHERE id = $5
		   AND updated_at = $6`,
		planID,
		planName,
		periodStart,
		periodEnd,
		id,
		expectedUpdatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(
			types.ErrCodeConflictConcurrent,
			"subscription was modified concurrently; retry the plan change",
			nil,
		)
	}
	return nil
}

// ListByStatus returns subscriptions filtered by status, newest first.
// An empty status returns all rows. Used by the admin back-office listing.
func (r *SubscriptionRepository) ListByStatus(ctx context.Context, status types.SubscriptionStatus, limit int) ([]*types.Subscription, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+subscriptionColumns+`
			 FROM subscriptions s
			 ORDER BY s.updated_at DESC
			 LIMIT $1`,
			limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+subscriptionColumns+`
			 FROM subscriptions s
			 WHERE s.status = $1
			 ORDER BY s.updated_at DESC
			 LIMIT $2`,
			status,
			limit,
		)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription row", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate subscription rows", err)
	}
	return subs, nil
}

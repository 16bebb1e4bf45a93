package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"alathletics/internal/types"
)

// ProfileRepository provides data access for the user_profiles table.
// The profile carries a denormalized current_plan/subscription_status mirror
// of the latest subscription row; the billing flows keep it in agreement.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUser retrieves a user's profile. Returns not_found_profile if no row
// exists (the user has never completed onboarding).
func (r *ProfileRepository) GetByUser(ctx context.Context, userID string) (*types.UserProfile, error) {
	row := r.db.QueryRow(ctx,
		`SELECT user_id, email, remote_customer_id, current_plan, subscription_status, updated_at
		 FROM user_profiles
		 WHERE user_id = $1`,
		userID,
	)

	var p types.UserProfile
	var (
		remoteCustomerID *string
		currentPlan      *string
		subStatus        *string
	)
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&remoteCustomerID,
		&currentPlan,
		&subStatus,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve profile", err)
	}
	if remoteCustomerID != nil {
		p.RemoteCustomerID = *remoteCustomerID
	}
	if currentPlan != nil {
		p.CurrentPlan = types.PlanID(*currentPlan)
	}
	if subStatus != nil {
		p.SubscriptionStatus = types.SubscriptionStatus(*subStatus)
	}
	return &p, nil
}

// UpdatePlanMirror writes the denormalized plan/status mirror onto the
// profile. Runs inside the plan-change transaction so the subscription row
// and the mirror move together.
func (r *ProfileRepository) UpdatePlanMirror(
	ctx context.Context,
	userID string,
	plan types.PlanID,
	status types.SubscriptionStatus,
) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles
		 SET current_plan = $1,
		     subscription_status = $2,
		     updated_at = NOW()
		 WHERE user_id = $3`,
		plan,
		status,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update profile plan mirror", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
	}
	return nil
}

// UpdateRemoteCustomerID binds the billing-provider customer id to the
// profile. Called when the first checkout completes.
func (r *ProfileRepository) UpdateRemoteCustomerID(ctx context.Context, userID, customerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_profiles
		 SET remote_customer_id = $1,
		     updated_at = NOW()
		 WHERE user_id = $2`,
		customerID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update remote customer id", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundProfile, "profile not found", nil)
	}
	return nil
}

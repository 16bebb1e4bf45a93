package types

import "time"

// Subscription is the locally persisted mirror of a billing-provider
// subscription. One row per provider subscription; a user accumulates
// historical rows over time and rows are never hard-deleted (cancellation
// is a status change).
//
// The billing provider is authoritative for Status and the period bounds;
// this row is a cache refreshed by reconciliation. PlanID/PlanName are owned
// locally and only change through the plan-change flow.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	RemoteCustomerID     string             `json:"remote_customer_id"`
	RemoteSubscriptionID string             `json:"remote_subscription_id"`
	PlanID               PlanID             `json:"plan_id"`
	PlanName             string             `json:"plan_name"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// UserProfile carries the denormalized subscription mirror used for fast
// display without joining to the subscriptions table. The reconciler and the
// plan-change flow are responsible for keeping it in agreement with the
// latest Subscription row.
type UserProfile struct {
	UserID             string             `json:"user_id"`
	Email              string             `json:"email"`
	RemoteCustomerID   string             `json:"remote_customer_id"`
	CurrentPlan        PlanID             `json:"current_plan"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Appointment is a booked coaching session occupying one half-hour slot.
// The slot invariant is global: no two non-cancelled appointments may share
// a scheduled time, regardless of user.
type Appointment struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	ScheduledDate time.Time         `json:"scheduled_date"`
	Status        AppointmentStatus `json:"status"`
	CheckInType   CheckInType       `json:"check_in_type"`
	Notes         string            `json:"notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// RemoteSubscription is the provider-side view of a subscription, as needed
// by the reconciler and the plan-change orchestrator.
type RemoteSubscription struct {
	ID                 string
	CustomerID         string
	Status             SubscriptionStatus
	PriceID            string
	ItemID             string // the single subscription item carrying the price
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// RemotePrice is the provider-side view of a catalog price. Used by the
// startup catalog validation.
type RemotePrice struct {
	ID       string
	Active   bool
	Currency string
	Interval string
}

// SyncResult reports the outcome of one reconciliation pass.
// Changed is false when local and remote already agreed (no write performed).
type SyncResult struct {
	PreviousStatus SubscriptionStatus `json:"previous_status"`
	NewStatus      SubscriptionStatus `json:"new_status"`
	Changed        bool               `json:"changed"`
	Subscription   *Subscription      `json:"subscription"`
}

// PlanChangeResult reports the outcome of an upgrade or downgrade.
type PlanChangeResult struct {
	NewPlan      PlanID        `json:"new_plan"`
	Subscription *Subscription `json:"subscription"`
}

// PlanInfo is the display-facing description of a plan resolved from a
// provider price id. Period information is lost on the reverse mapping;
// the provider subscription retains it in its own recurring-interval field.
type PlanInfo struct {
	PlanID      PlanID `json:"plan_id"`
	DisplayName string `json:"display_name"`
}

// SubscriptionSummary is an admin-facing subscription row enriched with the
// user's scheduled-session count.
type SubscriptionSummary struct {
	Subscription
	ScheduledSessions int `json:"scheduled_sessions"`
}

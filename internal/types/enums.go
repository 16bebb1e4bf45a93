package types

// PlanID identifies a coaching tier.
type PlanID string

const (
	PlanFoundation PlanID = "foundation"
	PlanGrowth     PlanID = "growth"
	PlanElite      PlanID = "elite"
)

// BillingPeriod identifies the recurring interval a plan was purchased on.
type BillingPeriod string

const (
	PeriodMonthly    BillingPeriod = "monthly"
	PeriodSemiannual BillingPeriod = "semiannual"
	PeriodAnnual     BillingPeriod = "annual"
)

// AllBillingPeriods lists every supported billing period.
// Used by the plan registry constructor and by validators.
var AllBillingPeriods = []BillingPeriod{PeriodMonthly, PeriodSemiannual, PeriodAnnual}

// SubscriptionStatus represents the state of a billing subscription.
// Values mirror the billing provider's status strings verbatim so that
// local and remote state compare by string equality.
type SubscriptionStatus string

const (
	SubStatusActive     SubscriptionStatus = "active"
	SubStatusTrialing   SubscriptionStatus = "trialing"
	SubStatusPastDue    SubscriptionStatus = "past_due"
	SubStatusCanceled   SubscriptionStatus = "canceled"
	SubStatusUnpaid     SubscriptionStatus = "unpaid"
	SubStatusIncomplete SubscriptionStatus = "incomplete"
)

// AppointmentStatus represents the lifecycle state of a coaching session.
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// CheckInType identifies the kind of coaching session being booked.
type CheckInType string

const (
	CheckInVideo    CheckInType = "video"
	CheckInPhone    CheckInType = "phone"
	CheckInInPerson CheckInType = "in_person"
)

// UserRole defines authorization levels for API actors.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleClient UserRole = "client"
)

package entity

import "time"

const (
	SubscriptionStatusTrialing  = "trialing"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusPastDue   = "past_due"
)

// TrialPeriodDays is the signup trial window; BillingPeriodDays is the
// flat-rate cycle length applied on every successful payment.
const (
	TrialPeriodDays   = 15
	BillingPeriodDays = 30
)

type Subscription struct {
	ID                      uint64
	CompanyID               uint64
	PlanID                  uint64
	Status                  string
	TrialStartsAt           *time.Time
	TrialEndsAt             *time.Time
	CurrentPeriodStart      *time.Time
	CurrentPeriodEnd        *time.Time
	GatewayCustomerCode     *string
	GatewaySubscriptionCode *string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

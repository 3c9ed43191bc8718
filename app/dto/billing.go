package dto

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type PlanResponse struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	PriceCents  int64           `json:"price_cents"`
	MaxProjects int32           `json:"max_projects"`
	MaxUsers    int32           `json:"max_users"`
	Features    map[string]bool `json:"features"`
}

type ListPlansResponse struct {
	Plans []PlanResponse `json:"plans"`
}

type SubscriptionResponse struct {
	ID                 uint64  `json:"id"`
	PlanID             uint64  `json:"plan_id"`
	Status             string  `json:"status"`
	TrialStartsAt      *string `json:"trial_starts_at,omitempty"`
	TrialEndsAt        *string `json:"trial_ends_at,omitempty"`
	CurrentPeriodStart *string `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *string `json:"current_period_end,omitempty"`
}

type EntitlementResponse struct {
	IsActive        bool `json:"is_active"`
	IsTrial         bool `json:"is_trial"`
	IsExpired       bool `json:"is_expired"`
	DaysLeftInTrial int  `json:"days_left_in_trial"`
}

// EntitlementsResponse is the flattened view CRUD services consume on every
// request: the derived entitlement plus the quotas and feature flags of the
// bound plan. Quota 0 means unlimited.
type EntitlementsResponse struct {
	Entitlement EntitlementResponse `json:"entitlement"`
	MaxProjects int32               `json:"max_projects"`
	MaxUsers    int32               `json:"max_users"`
	Features    map[string]bool     `json:"features"`
}

type SubscriptionStatusResponse struct {
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
	Plan         *PlanResponse         `json:"plan,omitempty"`
	Entitlement  EntitlementResponse   `json:"entitlement"`
}

type InitializePaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	AmountCents      int64  `json:"amount_cents"`
}

type VerifyPaymentResponse struct {
	Reference         string `json:"reference"`
	TransactionStatus string `json:"transaction_status"`
	Activated         bool   `json:"activated"`
	AlreadyProcessed  bool   `json:"already_processed"`
}

type DecisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

package entity

import "time"

const (
	TransactionStatusPending = "pending"
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
)

// PaymentTransaction is one purchase attempt. Reference is minted locally
// before the gateway call and is the idempotency key for reconciliation.
type PaymentTransaction struct {
	ID          uint64
	CompanyID   uint64
	PlanID      uint64
	Reference   string
	AmountCents int64
	Status      string
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

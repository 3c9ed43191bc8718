// Package gateway isolates the external payment provider behind a small
// interface so the reconciliation engine never depends on provider wire
// shapes.
package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable covers network failures, timeouts and 5xx responses
	// from the provider. The caller may retry the whole call; nothing here
	// retries automatically.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected covers well-formed provider responses that decline the
	// request (unknown reference, bad parameters).
	ErrRejected = errors.New("payment gateway rejected request")
)

// InitializeRequest starts a hosted checkout session. Amount is in minor
// currency units. Metadata is echoed back by the provider on every
// confirmation channel, which is what lets the webhook recover tenant and
// plan without an authenticated context.
type InitializeRequest struct {
	Reference   string
	AmountCents int64
	Email       string
	CallbackURL string
	CompanyID   uint64
	PlanID      uint64
}

type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Outcome is the provider's authoritative verdict on a reference, shared by
// the verify call and the webhook payload.
type Outcome struct {
	Reference        string
	Succeeded        bool
	AmountCents      int64
	CustomerCode     string
	SubscriptionCode string
	PaidAt           *time.Time
	CompanyID        uint64
	PlanID           uint64
}

type Client interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*Outcome, error)
}

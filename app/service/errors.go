package service

import "errors"

var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrPlanNotFound              = errors.New("plan not found")
	ErrTransactionNotFound       = errors.New("payment transaction not found")
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrGatewayUnavailable        = errors.New("payment gateway unavailable")
	ErrGatewayRejected           = errors.New("payment gateway rejected the request")
	ErrSignatureInvalid          = errors.New("webhook signature invalid")

	// ErrInconsistentState marks the one failure the engine must never
	// swallow: money recorded as collected while the matching subscription
	// state could not be confirmed. Surfaced to a human, not auto-healed.
	ErrInconsistentState = errors.New("payment recorded but subscription state inconsistent")
)

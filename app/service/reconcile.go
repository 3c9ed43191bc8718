package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/factory"
	"github.com/Rans7ord/Construction-sub000/app/gateway"
	"github.com/Rans7ord/Construction-sub000/app/repository"
	"github.com/Rans7ord/Construction-sub000/config"
	"github.com/sirupsen/logrus"
)

type subscriptionBillingRepository interface {
	Create(ctx context.Context, subscription *entity.Subscription) error
	FindByCompanyID(ctx context.Context, companyID uint64) (*entity.Subscription, error)
	FindByCustomerCode(ctx context.Context, customerCode string) (*entity.Subscription, error)
	Activate(ctx context.Context, companyID, planID uint64, periodStart, periodEnd time.Time, customerCode, subscriptionCode *string) error
	MarkCancelled(ctx context.Context, companyID uint64) error
	MarkPastDue(ctx context.Context, companyID uint64) error
	ListLapsed(ctx context.Context, now time.Time) ([]*entity.Subscription, error)
	MarkExpired(ctx context.Context, id uint64, fromStatus string) error
}

// ReconcileService collapses the three confirmation channels (synchronous
// verify, webhook, manual re-verify) into a single idempotent activation.
// All channels funnel into reconcile; the idempotency guard itself lives in
// the storage layer's conditional update, so concurrent deliveries cannot
// both activate.
type ReconcileService struct {
	txRepo           transactionRepository
	subscriptionRepo subscriptionBillingRepository
	gatewayClient    gateway.Client
	webhookSecret    string
	logger           logrus.FieldLogger
}

func NewReconcileService(txRepo transactionRepository, subscriptionRepo subscriptionBillingRepository, gatewayClient gateway.Client, cfg config.GatewayConfig) *ReconcileService {
	return &ReconcileService{
		txRepo:           txRepo,
		subscriptionRepo: subscriptionRepo,
		gatewayClient:    gatewayClient,
		webhookSecret:    cfg.WebhookSecret,
		logger:           factory.NewModuleLogger("reconcile-service"),
	}
}

// Result reports what a reconciliation attempt did. Activated is true only
// for the single attempt that won the conditional update and performed the
// subscription transition.
type Result struct {
	TransactionStatus string
	Activated         bool
	AlreadyProcessed  bool
}

// VerifyPayment is the synchronous confirmation channel, also used verbatim
// for administrative re-verification. The transaction lookup is scoped to
// the calling tenant.
func (s *ReconcileService) VerifyPayment(ctx context.Context, companyID uint64, reference string) (*Result, error) {
	reference = strings.TrimSpace(reference)
	if companyID == 0 || reference == "" {
		return nil, fmt.Errorf("%w: company and reference are required", ErrInvalidRequest)
	}

	outcome, err := s.gatewayClient.VerifyTransaction(ctx, reference)
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return s.reconcile(ctx, &companyID, reference, outcome)
}

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeEventData struct {
	Reference string                  `json:"reference"`
	Status    string                  `json:"status"`
	Amount    int64                   `json:"amount"`
	PaidAt    string                  `json:"paid_at"`
	Metadata  gateway.TransactionMeta `json:"metadata"`
	Customer  struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

type subscriptionEventData struct {
	SubscriptionCode string                  `json:"subscription_code"`
	Metadata         gateway.TransactionMeta `json:"metadata"`
	Customer         struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

// HandleWebhook is the asynchronous confirmation channel. The signature is
// checked over the raw body before anything else happens; a mismatch causes
// no lookups and no state changes. Delivery is at-least-once, so every
// branch below must tolerate replays.
func (s *ReconcileService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !gateway.ValidSignature(s.webhookSecret, body, signature) {
		s.logger.WithField("body_bytes", len(body)).Warn("Webhook rejected: signature mismatch")
		return ErrSignatureInvalid
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: malformed webhook body", ErrInvalidRequest)
	}

	switch envelope.Event {
	case "charge.success":
		return s.handleChargeSuccess(ctx, envelope.Data)
	case "subscription.disable":
		return s.handleSubscriptionDisable(ctx, envelope.Data)
	case "invoice.payment_failed":
		return s.handlePaymentFailed(ctx, envelope.Data)
	default:
		// Acknowledge unknown events so the gateway stops retrying them.
		s.logger.WithField("event", envelope.Event).Debug("Ignoring webhook event")
		return nil
	}
}

func (s *ReconcileService) handleChargeSuccess(ctx context.Context, data json.RawMessage) error {
	var charge chargeEventData
	if err := json.Unmarshal(data, &charge); err != nil {
		return fmt.Errorf("%w: malformed charge.success payload", ErrInvalidRequest)
	}
	if charge.Reference == "" {
		s.logger.Warn("charge.success event without a reference, ignoring")
		return nil
	}

	outcome := &gateway.Outcome{
		Reference:    charge.Reference,
		Succeeded:    strings.EqualFold(charge.Status, "success"),
		AmountCents:  charge.Amount,
		CustomerCode: charge.Customer.CustomerCode,
		CompanyID:    charge.Metadata.CompanyIDValue(),
		PlanID:       charge.Metadata.PlanIDValue(),
	}
	if charge.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, charge.PaidAt); err == nil {
			paidAt = paidAt.UTC()
			outcome.PaidAt = &paidAt
		}
	}

	_, err := s.reconcile(ctx, nil, charge.Reference, outcome)
	if errors.Is(err, ErrTransactionNotFound) {
		// Only the checkout flow mints references; an unknown one is not
		// ours to create.
		s.logger.WithField("reference", charge.Reference).Warn("charge.success for unknown reference, ignoring")
		return nil
	}
	return err
}

func (s *ReconcileService) handleSubscriptionDisable(ctx context.Context, data json.RawMessage) error {
	var event subscriptionEventData
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: malformed subscription.disable payload", ErrInvalidRequest)
	}

	companyID, err := s.resolveCompany(ctx, event)
	if err != nil {
		return err
	}
	if companyID == 0 {
		s.logger.WithField("customer_code", event.Customer.CustomerCode).Warn("subscription.disable for unknown company, ignoring")
		return nil
	}

	if err := s.subscriptionRepo.MarkCancelled(ctx, companyID); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}
	s.logger.WithField("company_id", companyID).Info("Subscription cancelled by gateway event")
	return nil
}

func (s *ReconcileService) handlePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var event subscriptionEventData
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: malformed invoice.payment_failed payload", ErrInvalidRequest)
	}

	companyID, err := s.resolveCompany(ctx, event)
	if err != nil {
		return err
	}
	if companyID == 0 {
		s.logger.WithField("customer_code", event.Customer.CustomerCode).Warn("invoice.payment_failed for unknown company, ignoring")
		return nil
	}

	if err := s.subscriptionRepo.MarkPastDue(ctx, companyID); err != nil {
		return err
	}
	s.logger.WithField("company_id", companyID).Info("Subscription marked past due by gateway event")
	return nil
}

// resolveCompany derives the tenant for events that have no authenticated
// context: metadata first, gateway customer code second.
func (s *ReconcileService) resolveCompany(ctx context.Context, event subscriptionEventData) (uint64, error) {
	if id := event.Metadata.CompanyIDValue(); id != 0 {
		return id, nil
	}
	if event.Customer.CustomerCode == "" {
		return 0, nil
	}
	sub, err := s.subscriptionRepo.FindByCustomerCode(ctx, event.Customer.CustomerCode)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, nil
	}
	return sub.CompanyID, nil
}

// reconcile is the single algorithm behind every confirmation channel. The
// companyScope pointer distinguishes tenant-scoped lookups (verify paths)
// from unscoped ones (webhook).
func (s *ReconcileService) reconcile(ctx context.Context, companyScope *uint64, reference string, outcome *gateway.Outcome) (*Result, error) {
	var tx *entity.PaymentTransaction
	var err error
	if companyScope != nil {
		tx, err = s.txRepo.FindByReferenceAndCompany(ctx, reference, *companyScope)
	} else {
		tx, err = s.txRepo.FindByReference(ctx, reference)
	}
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}

	if tx.Status == entity.TransactionStatusSuccess {
		return &Result{TransactionStatus: entity.TransactionStatusSuccess, AlreadyProcessed: true}, nil
	}

	if !outcome.Succeeded {
		if err := s.txRepo.MarkFailed(ctx, reference); err != nil {
			return nil, err
		}
		return &Result{TransactionStatus: entity.TransactionStatusFailed}, nil
	}

	// The gateway's reported amount must match what the plan was sold for.
	// A mismatch never activates; it is surfaced for a human to settle.
	if outcome.AmountCents != 0 && outcome.AmountCents != tx.AmountCents {
		s.logger.WithFields(logrus.Fields{
			"reference":      reference,
			"charged_cents":  outcome.AmountCents,
			"expected_cents": tx.AmountCents,
		}).Warn("Amount mismatch on successful charge")
		return nil, fmt.Errorf("%w: reference %s charged %d, expected %d", ErrInconsistentState, reference, outcome.AmountCents, tx.AmountCents)
	}

	now := time.Now().UTC()
	paidAt := now
	if outcome.PaidAt != nil {
		paidAt = *outcome.PaidAt
	}

	updated, err := s.txRepo.MarkSuccess(ctx, reference, paidAt)
	if err != nil {
		return nil, err
	}
	if !updated {
		// A concurrent delivery won the conditional update; its activation
		// stands and this one must not repeat it.
		return &Result{TransactionStatus: entity.TransactionStatusSuccess, AlreadyProcessed: true}, nil
	}

	var customerCode, subscriptionCode *string
	if outcome.CustomerCode != "" {
		customerCode = &outcome.CustomerCode
	}
	if outcome.SubscriptionCode != "" {
		subscriptionCode = &outcome.SubscriptionCode
	}

	periodEnd := now.Add(entity.BillingPeriodDays * 24 * time.Hour)
	if err := s.subscriptionRepo.Activate(ctx, tx.CompanyID, tx.PlanID, now, periodEnd, customerCode, subscriptionCode); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"reference":  reference,
			"company_id": tx.CompanyID,
		}).Error("Transaction recorded success but activation failed")
		return nil, fmt.Errorf("%w: reference %s: %v", ErrInconsistentState, reference, err)
	}

	return &Result{TransactionStatus: entity.TransactionStatusSuccess, Activated: true}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/factory"
	"github.com/Rans7ord/Construction-sub000/app/gateway"
	"github.com/Rans7ord/Construction-sub000/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type planCatalogRepository interface {
	ListActive(ctx context.Context) ([]*entity.Plan, error)
	FindByID(ctx context.Context, id uint64) (*entity.Plan, error)
	FindActiveByID(ctx context.Context, id uint64) (*entity.Plan, error)
	FindCheapestActive(ctx context.Context) (*entity.Plan, error)
}

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.PaymentTransaction) error
	FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error)
	FindByReferenceAndCompany(ctx context.Context, reference string, companyID uint64) (*entity.PaymentTransaction, error)
	MarkSuccess(ctx context.Context, reference string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, reference string) error
}

// CheckoutService starts purchases: it mints the reference, records the
// pending transaction and only then contacts the gateway. That ordering is
// deliberate: a gateway failure after the local write leaves a pending row
// that reconciliation can pick up, while a failed local write means no
// external charge was ever attempted.
type CheckoutService struct {
	planRepo      planCatalogRepository
	txRepo        transactionRepository
	gatewayClient gateway.Client
	cfg           config.GatewayConfig
	logger        logrus.FieldLogger
}

func NewCheckoutService(planRepo planCatalogRepository, txRepo transactionRepository, gatewayClient gateway.Client, cfg config.GatewayConfig) *CheckoutService {
	return &CheckoutService{
		planRepo:      planRepo,
		txRepo:        txRepo,
		gatewayClient: gatewayClient,
		cfg:           cfg,
		logger:        factory.NewModuleLogger("checkout-service"),
	}
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	AmountCents      int64
}

func (s *CheckoutService) InitializePayment(ctx context.Context, companyID, planID uint64, email string) (*InitializeResult, error) {
	email = strings.TrimSpace(email)
	if companyID == 0 || planID == 0 || email == "" {
		return nil, fmt.Errorf("%w: company, plan and billing email are required", ErrInvalidRequest)
	}

	plan, err := s.planRepo.FindActiveByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	now := time.Now().UTC()
	tx := &entity.PaymentTransaction{
		CompanyID:   companyID,
		PlanID:      planID,
		Reference:   newReference(companyID),
		AmountCents: plan.PriceCents,
		Status:      entity.TransactionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	resp, err := s.gatewayClient.InitializeTransaction(ctx, gateway.InitializeRequest{
		Reference:   tx.Reference,
		AmountCents: plan.PriceCents,
		Email:       email,
		CallbackURL: s.cfg.CallbackURL,
		CompanyID:   companyID,
		PlanID:      planID,
	})
	if err != nil {
		// The pending row stays behind on purpose; it is reconciled or
		// garbage-collected later, never silently retried.
		s.logger.WithError(err).WithField("reference", tx.Reference).Warn("Gateway initialize failed, pending transaction kept")
		if errors.Is(err, gateway.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &InitializeResult{
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Reference:        tx.Reference,
		AmountCents:      plan.PriceCents,
	}, nil
}

// newReference mints the idempotency key for the whole reconciliation flow.
// The CSB prefix namespaces our references at the gateway; the uuid suffix
// makes collisions vanishingly unlikely.
func newReference(companyID uint64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("CSB-%d-%s", companyID, suffix)
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entitlement"
	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/factory"
	"github.com/Rans7ord/Construction-sub000/app/repository"
	"github.com/sirupsen/logrus"
)

type SubscriptionService struct {
	subscriptionRepo subscriptionBillingRepository
	planRepo         planCatalogRepository
	logger           logrus.FieldLogger
}

func NewSubscriptionService(subscriptionRepo subscriptionBillingRepository, planRepo planCatalogRepository) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		logger:           factory.NewModuleLogger("subscription-service"),
	}
}

// CreateTrial mints the single subscription row for a freshly signed-up
// company: trialing for 15 days, bound to the cheapest active plan.
func (s *SubscriptionService) CreateTrial(ctx context.Context, companyID uint64) (*entity.Subscription, error) {
	if companyID == 0 {
		return nil, ErrInvalidRequest
	}

	plan, err := s.planRepo.FindCheapestActive(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	now := time.Now().UTC()
	trialEnd := now.Add(entity.TrialPeriodDays * 24 * time.Hour)
	subscription := &entity.Subscription{
		CompanyID:     companyID,
		PlanID:        plan.ID,
		Status:        entity.SubscriptionStatusTrialing,
		TrialStartsAt: &now,
		TrialEndsAt:   &trialEnd,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		if errors.Is(err, repository.ErrSubscriptionAlreadyExists) {
			return nil, ErrSubscriptionAlreadyExists
		}
		return nil, err
	}

	return subscription, nil
}

// StatusSnapshot is what the surrounding CRUD/UI layer reads on every
// request: the stored row plus the entitlement derived from it right now.
// Subscription and Plan are nil for a company that never signed up.
type StatusSnapshot struct {
	Subscription *entity.Subscription
	Plan         *entity.Plan
	Entitlement  entitlement.Entitlement
}

func (s *SubscriptionService) GetStatus(ctx context.Context, companyID uint64) (*StatusSnapshot, error) {
	if companyID == 0 {
		return nil, ErrInvalidRequest
	}

	subscription, err := s.subscriptionRepo.FindByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	snapshot := &StatusSnapshot{
		Subscription: subscription,
		Entitlement:  entitlement.Evaluate(subscription, time.Now().UTC()),
	}

	if subscription != nil {
		plan, err := s.planRepo.FindByID(ctx, subscription.PlanID)
		if err != nil {
			return nil, err
		}
		snapshot.Plan = plan
	}

	return snapshot, nil
}

func (s *SubscriptionService) ListPlans(ctx context.Context) ([]*entity.Plan, error) {
	return s.planRepo.ListActive(ctx)
}

// RunExpirySweep flips lapsed rows to expired so lists and dashboards show
// fresh statuses. Entitlement never depends on it: expiry is re-derived on
// every read.
func (s *SubscriptionService) RunExpirySweep(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.subscriptionRepo.ListLapsed(ctx, now)
	if err != nil {
		return err
	}

	swept := 0
	for _, item := range items {
		if err := s.subscriptionRepo.MarkExpired(ctx, item.ID, item.Status); err != nil {
			s.logger.WithError(err).WithField("subscription_id", item.ID).Warn("Expiry sweep update failed")
			continue
		}
		swept++
	}

	if swept > 0 {
		s.logger.WithField("count", swept).Info("Expired lapsed subscriptions")
	}
	return nil
}

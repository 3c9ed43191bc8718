// Package guard answers the CRUD layer's "may this company do X" questions.
// Denials are business outcomes carried in the Decision, not errors; only
// storage failures surface as errors. Every path fails closed.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entitlement"
	"github.com/Rans7ord/Construction-sub000/app/entity"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type subscriptionReader interface {
	FindByCompanyID(ctx context.Context, companyID uint64) (*entity.Subscription, error)
}

type planReader interface {
	FindByID(ctx context.Context, id uint64) (*entity.Plan, error)
}

type resourceCounter interface {
	CountProjects(ctx context.Context, companyID uint64) (int64, error)
	CountUsers(ctx context.Context, companyID uint64) (int64, error)
}

type Guard struct {
	subscriptions subscriptionReader
	plans         planReader
	counts        resourceCounter
	now           func() time.Time
}

func NewGuard(subscriptions subscriptionReader, plans planReader, counts resourceCounter) *Guard {
	return &Guard{
		subscriptions: subscriptions,
		plans:         plans,
		counts:        counts,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CanCreateProject checks entitlement and the plan's project quota. The
// count-then-allow sequence is a soft limit: two concurrent requests can
// both pass before either commits, which is accepted.
func (g *Guard) CanCreateProject(ctx context.Context, companyID uint64) (Decision, error) {
	plan, decision, err := g.activePlan(ctx, companyID)
	if err != nil || !decision.Allowed {
		return decision, err
	}

	if plan.MaxProjects == 0 {
		return allow(), nil
	}

	count, err := g.counts.CountProjects(ctx, companyID)
	if err != nil {
		return deny("could not verify project quota"), err
	}
	if count >= int64(plan.MaxProjects) {
		return deny(fmt.Sprintf("project limit of %d reached for the %s plan; upgrade to add more projects", plan.MaxProjects, plan.Name)), nil
	}
	return allow(), nil
}

func (g *Guard) CanAddUser(ctx context.Context, companyID uint64) (Decision, error) {
	plan, decision, err := g.activePlan(ctx, companyID)
	if err != nil || !decision.Allowed {
		return decision, err
	}

	if plan.MaxUsers == 0 {
		return allow(), nil
	}

	count, err := g.counts.CountUsers(ctx, companyID)
	if err != nil {
		return deny("could not verify user quota"), err
	}
	if count >= int64(plan.MaxUsers) {
		return deny(fmt.Sprintf("user limit of %d reached for the %s plan; upgrade to add more users", plan.MaxUsers, plan.Name)), nil
	}
	return allow(), nil
}

func (g *Guard) CanUseFeature(ctx context.Context, companyID uint64, featureKey string) (Decision, error) {
	plan, decision, err := g.activePlan(ctx, companyID)
	if err != nil || !decision.Allowed {
		return decision, err
	}

	if !plan.Features.Enabled(featureKey) {
		return deny(fmt.Sprintf("the %s plan does not include this feature; upgrade to use it", plan.Name)), nil
	}
	return allow(), nil
}

func (g *Guard) activePlan(ctx context.Context, companyID uint64) (*entity.Plan, Decision, error) {
	sub, err := g.subscriptions.FindByCompanyID(ctx, companyID)
	if err != nil {
		return nil, deny("could not verify subscription"), err
	}

	ent := entitlement.Evaluate(sub, g.now())
	if !ent.IsActive {
		if ent.IsTrial {
			return nil, deny("your free trial has ended; subscribe to a plan to continue"), nil
		}
		return nil, deny("your subscription is not active; renew or subscribe to a plan to continue"), nil
	}

	plan, err := g.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, deny("could not verify subscription plan"), err
	}
	if plan == nil {
		return nil, deny("your subscription references an unavailable plan; contact support"), nil
	}

	return plan, allow(), nil
}

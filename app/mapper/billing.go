package mapper

import (
	"time"

	"github.com/Rans7ord/Construction-sub000/app/dto"
	"github.com/Rans7ord/Construction-sub000/app/entitlement"
	"github.com/Rans7ord/Construction-sub000/app/entity"
)

func PlanToResponse(item *entity.Plan) *dto.PlanResponse {
	if item == nil {
		return nil
	}

	return &dto.PlanResponse{
		ID:          item.ID,
		Name:        item.Name,
		PriceCents:  item.PriceCents,
		MaxProjects: item.MaxProjects,
		MaxUsers:    item.MaxUsers,
		Features: map[string]bool{
			entity.FeatureBudgetTracking:       item.Features.BudgetTracking,
			entity.FeatureExpenseManagement:    item.Features.ExpenseManagement,
			entity.FeatureReports:              item.Features.Reports,
			entity.FeatureCSVExport:            item.Features.CSVExport,
			entity.FeatureRolePermissions:      item.Features.RolePermissions,
			entity.FeaturePrioritySupport:      item.Features.PrioritySupport,
			entity.FeaturePettyCash:            item.Features.PettyCash,
			entity.FeatureMaterialRequisitions: item.Features.MaterialRequisitions,
		},
	}
}

func PlansToResponse(items []*entity.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(items))
	for _, item := range items {
		if mapped := PlanToResponse(item); mapped != nil {
			result = append(result, *mapped)
		}
	}
	return result
}

func SubscriptionToResponse(item *entity.Subscription) *dto.SubscriptionResponse {
	if item == nil {
		return nil
	}

	return &dto.SubscriptionResponse{
		ID:                 item.ID,
		PlanID:             item.PlanID,
		Status:             item.Status,
		TrialStartsAt:      formatTime(item.TrialStartsAt),
		TrialEndsAt:        formatTime(item.TrialEndsAt),
		CurrentPeriodStart: formatTime(item.CurrentPeriodStart),
		CurrentPeriodEnd:   formatTime(item.CurrentPeriodEnd),
	}
}

// EntitlementsToResponse flattens a status snapshot for guard-side
// consumers. A missing plan yields zero quotas and an empty feature map,
// which reads as "nothing allowed" on an inactive entitlement.
func EntitlementsToResponse(ent entitlement.Entitlement, plan *entity.Plan) *dto.EntitlementsResponse {
	resp := &dto.EntitlementsResponse{
		Entitlement: EntitlementToResponse(ent),
		Features:    map[string]bool{},
	}
	if plan != nil {
		resp.MaxProjects = plan.MaxProjects
		resp.MaxUsers = plan.MaxUsers
		resp.Features = PlanToResponse(plan).Features
	}
	return resp
}

func EntitlementToResponse(item entitlement.Entitlement) dto.EntitlementResponse {
	return dto.EntitlementResponse{
		IsActive:        item.IsActive,
		IsTrial:         item.IsTrial,
		IsExpired:       item.IsExpired,
		DaysLeftInTrial: item.DaysLeftInTrial,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

package entity

import (
	"encoding/json"
	"time"
)

// Feature keys accepted by the guard. They match the JSON keys stored in the
// plans.features column.
const (
	FeatureBudgetTracking       = "budget_tracking"
	FeatureExpenseManagement    = "expense_management"
	FeatureReports              = "reports"
	FeatureCSVExport            = "csv_export"
	FeatureRolePermissions      = "role_permissions"
	FeaturePrioritySupport      = "priority_support"
	FeaturePettyCash            = "petty_cash"
	FeatureMaterialRequisitions = "material_requisitions"
)

// PlanFeatures is the deserialized feature map of a plan. Flags absent from
// the stored JSON stay false.
type PlanFeatures struct {
	BudgetTracking       bool `json:"budget_tracking"`
	ExpenseManagement    bool `json:"expense_management"`
	Reports              bool `json:"reports"`
	CSVExport            bool `json:"csv_export"`
	RolePermissions      bool `json:"role_permissions"`
	PrioritySupport      bool `json:"priority_support"`
	PettyCash            bool `json:"petty_cash"`
	MaterialRequisitions bool `json:"material_requisitions"`
}

func (f PlanFeatures) Enabled(key string) bool {
	switch key {
	case FeatureBudgetTracking:
		return f.BudgetTracking
	case FeatureExpenseManagement:
		return f.ExpenseManagement
	case FeatureReports:
		return f.Reports
	case FeatureCSVExport:
		return f.CSVExport
	case FeatureRolePermissions:
		return f.RolePermissions
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeaturePettyCash:
		return f.PettyCash
	case FeatureMaterialRequisitions:
		return f.MaterialRequisitions
	default:
		return false
	}
}

// Plan is a purchasable tier. Quota value 0 means unlimited. Price is kept
// in minor currency units.
type Plan struct {
	ID          uint64
	Name        string
	PriceCents  int64
	MaxProjects int32
	MaxUsers    int32
	Features    PlanFeatures
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParsePlanFeatures decodes the stored feature map. An empty column yields
// the zero value; malformed JSON is a storage error, never a partial plan.
func ParsePlanFeatures(raw string) (PlanFeatures, error) {
	var f PlanFeatures
	if raw == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return PlanFeatures{}, err
	}
	return f, nil
}

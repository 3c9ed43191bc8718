package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Rans7ord/Construction-sub000/app/entity"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, price_cents, max_projects, max_users, features, active, created_at, updated_at`

func (r *PlanRepository) ListActive(ctx context.Context) ([]*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE active = 1
		ORDER BY price_cents ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Plan, 0)
	for rows.Next() {
		item, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = ?
	`

	item, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *PlanRepository) FindActiveByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = ? AND active = 1
	`

	item, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FindCheapestActive returns the lowest-priced active plan, used as the
// default binding for new trials.
func (r *PlanRepository) FindCheapestActive(ctx context.Context) (*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE active = 1
		ORDER BY price_cents ASC
		LIMIT 1
	`

	item, err := scanPlan(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func scanPlan(scanner rowScanner) (*entity.Plan, error) {
	item := &entity.Plan{}
	var features sql.NullString
	err := scanner.Scan(
		&item.ID,
		&item.Name,
		&item.PriceCents,
		&item.MaxProjects,
		&item.MaxUsers,
		&features,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := entity.ParsePlanFeatures(stringValue(features))
	if err != nil {
		return nil, fmt.Errorf("plan %d has malformed feature map: %w", item.ID, err)
	}
	item.Features = parsed

	return item, nil
}

func stringValue(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
)

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
)

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, company_id, plan_id, status,
	       trial_starts_at, trial_ends_at, current_period_start, current_period_end,
	       gateway_customer_code, gateway_subscription_code,
	       created_at, updated_at`

// Create inserts the trial row minted at company signup. company_id carries
// a unique key, so a second signup for the same company maps to
// ErrSubscriptionAlreadyExists.
func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			company_id, plan_id, status,
			trial_starts_at, trial_ends_at, current_period_start, current_period_end,
			gateway_customer_code, gateway_subscription_code,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.CompanyID,
		subscription.PlanID,
		subscription.Status,
		nullableTimeValue(subscription.TrialStartsAt),
		nullableTimeValue(subscription.TrialEndsAt),
		nullableTimeValue(subscription.CurrentPeriodStart),
		nullableTimeValue(subscription.CurrentPeriodEnd),
		nullableStringValue(subscription.GatewayCustomerCode),
		nullableStringValue(subscription.GatewaySubscriptionCode),
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSubscriptionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) FindByCompanyID(ctx context.Context, companyID uint64) (*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE company_id = ?
	`

	item := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, companyID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

// Activate is the single write implementing trialing->active,
// active->active (renewal/upgrade, full period reset) and past_due->active.
// The upsert keys on the company_id unique index so a company that somehow
// lacks a subscription row still ends up active.
func (r *SubscriptionRepository) Activate(ctx context.Context, companyID, planID uint64, periodStart, periodEnd time.Time, customerCode, subscriptionCode *string) error {
	query := `
		INSERT INTO subscriptions (
			company_id, plan_id, status,
			current_period_start, current_period_end,
			gateway_customer_code, gateway_subscription_code,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			plan_id = VALUES(plan_id),
			status = VALUES(status),
			current_period_start = VALUES(current_period_start),
			current_period_end = VALUES(current_period_end),
			gateway_customer_code = COALESCE(VALUES(gateway_customer_code), gateway_customer_code),
			gateway_subscription_code = COALESCE(VALUES(gateway_subscription_code), gateway_subscription_code),
			updated_at = VALUES(updated_at)
	`

	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		companyID,
		planID,
		entity.SubscriptionStatusActive,
		periodStart,
		periodEnd,
		nullableStringValue(customerCode),
		nullableStringValue(subscriptionCode),
		now,
		now,
	)
	return err
}

// FindByCustomerCode resolves the tenant for webhook events that carry only
// the gateway customer reference.
func (r *SubscriptionRepository) FindByCustomerCode(ctx context.Context, customerCode string) (*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE gateway_customer_code = ?
	`

	item := &entity.Subscription{}
	if err := scanSubscription(r.db.QueryRowContext(ctx, query, customerCode), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

// MarkCancelled applies the stored cancellation transition pushed by the
// gateway. Valid from any state.
func (r *SubscriptionRepository) MarkCancelled(ctx context.Context, companyID uint64) error {
	query := `
		UPDATE subscriptions
		SET status = ?, updated_at = ?
		WHERE company_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.SubscriptionStatusCancelled, time.Now().UTC(), companyID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// MarkPastDue records a failed recurring charge. Only an active subscription
// moves to past_due; anything else is left alone.
func (r *SubscriptionRepository) MarkPastDue(ctx context.Context, companyID uint64) error {
	query := `
		UPDATE subscriptions
		SET status = ?, updated_at = ?
		WHERE company_id = ? AND status = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		entity.SubscriptionStatusPastDue,
		time.Now().UTC(),
		companyID,
		entity.SubscriptionStatusActive,
	)
	return err
}

// ListLapsed returns trialing rows past their trial window and active rows
// past their period end. Used only by the expiry sweep; entitlement is
// always derived on read.
func (r *SubscriptionRepository) ListLapsed(ctx context.Context, now time.Time) ([]*entity.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE (status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?)
		   OR (status = ? AND current_period_end IS NOT NULL AND current_period_end < ?)
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query,
		entity.SubscriptionStatusTrialing, now,
		entity.SubscriptionStatusActive, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Subscription, 0)
	for rows.Next() {
		item := &entity.Subscription{}
		if err := scanSubscription(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// MarkExpired flips a lapsed row to expired, guarded on the status it was
// read with so a payment landing mid-sweep is never clobbered.
func (r *SubscriptionRepository) MarkExpired(ctx context.Context, id uint64, fromStatus string) error {
	query := `
		UPDATE subscriptions
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	_, err := r.db.ExecContext(ctx, query, entity.SubscriptionStatusExpired, time.Now().UTC(), id, fromStatus)
	return err
}

func scanSubscription(scanner rowScanner, item *entity.Subscription) error {
	var trialStartsAt sql.NullTime
	var trialEndsAt sql.NullTime
	var periodStart sql.NullTime
	var periodEnd sql.NullTime
	var customerCode sql.NullString
	var subscriptionCode sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.CompanyID,
		&item.PlanID,
		&item.Status,
		&trialStartsAt,
		&trialEndsAt,
		&periodStart,
		&periodEnd,
		&customerCode,
		&subscriptionCode,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.TrialStartsAt = timePtr(trialStartsAt)
	item.TrialEndsAt = timePtr(trialEndsAt)
	item.CurrentPeriodStart = timePtr(periodStart)
	item.CurrentPeriodEnd = timePtr(periodEnd)
	item.GatewayCustomerCode = stringPtr(customerCode)
	item.GatewaySubscriptionCode = stringPtr(subscriptionCode)

	return nil
}

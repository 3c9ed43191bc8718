package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
)

var (
	ErrTransactionNotFound      = errors.New("payment transaction not found")
	ErrTransactionAlreadyExists = errors.New("payment transaction already exists")
)

type PaymentTransactionRepository struct {
	db DBTX
}

func NewPaymentTransactionRepository(db DBTX) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

const transactionColumns = `id, company_id, plan_id, reference, amount_cents, status, paid_at, created_at, updated_at`

// Create persists the pending row before any gateway call. reference carries
// a unique key; a collision maps to ErrTransactionAlreadyExists.
func (r *PaymentTransactionRepository) Create(ctx context.Context, tx *entity.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (
			company_id, plan_id, reference, amount_cents, status, paid_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		tx.CompanyID,
		tx.PlanID,
		tx.Reference,
		tx.AmountCents,
		tx.Status,
		nullableTimeValue(tx.PaidAt),
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = uint64(id)
	return nil
}

// FindByReference is the webhook-path lookup; the webhook has no
// authenticated tenant context.
func (r *PaymentTransactionRepository) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE reference = ?
	`

	return r.findOne(ctx, query, reference)
}

// FindByReferenceAndCompany is the tenant-scoped lookup used by the
// synchronous verify and manual re-verify paths.
func (r *PaymentTransactionRepository) FindByReferenceAndCompany(ctx context.Context, reference string, companyID uint64) (*entity.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE reference = ? AND company_id = ?
	`

	return r.findOne(ctx, query, reference, companyID)
}

// MarkSuccess promotes a transaction to success. The status guard lives in
// the statement itself so concurrent reconciliation attempts cannot both win:
// the returned bool is false when the row was already success (or missing),
// and a false return means the caller must not activate the subscription.
func (r *PaymentTransactionRepository) MarkSuccess(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	query := `
		UPDATE payment_transactions
		SET status = ?, paid_at = ?, updated_at = ?
		WHERE reference = ? AND status <> ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.TransactionStatusSuccess,
		paidAt,
		time.Now().UTC(),
		reference,
		entity.TransactionStatusSuccess,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed records a gateway-reported failure. Only a pending row moves to
// failed: failed->failed is a no-op and success is never regressed.
func (r *PaymentTransactionRepository) MarkFailed(ctx context.Context, reference string) error {
	query := `
		UPDATE payment_transactions
		SET status = ?, updated_at = ?
		WHERE reference = ? AND status = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		entity.TransactionStatusFailed,
		time.Now().UTC(),
		reference,
		entity.TransactionStatusPending,
	)
	return err
}

func (r *PaymentTransactionRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.PaymentTransaction, error) {
	item := &entity.PaymentTransaction{}
	var paidAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&item.ID,
		&item.CompanyID,
		&item.PlanID,
		&item.Reference,
		&item.AmountCents,
		&item.Status,
		&paidAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item.PaidAt = timePtr(paidAt)
	return item, nil
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/repository"
)

type mockPlanRepo struct {
	listActiveFn         func(ctx context.Context) ([]*entity.Plan, error)
	findByIDFn           func(ctx context.Context, id uint64) (*entity.Plan, error)
	findActiveByIDFn     func(ctx context.Context, id uint64) (*entity.Plan, error)
	findCheapestActiveFn func(ctx context.Context) (*entity.Plan, error)
}

func (m *mockPlanRepo) ListActive(ctx context.Context) ([]*entity.Plan, error) {
	if m.listActiveFn != nil {
		return m.listActiveFn(ctx)
	}
	return nil, nil
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPlanRepo) FindActiveByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	if m.findActiveByIDFn != nil {
		return m.findActiveByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPlanRepo) FindCheapestActive(ctx context.Context) (*entity.Plan, error) {
	if m.findCheapestActiveFn != nil {
		return m.findCheapestActiveFn(ctx)
	}
	return nil, nil
}

type mockTransactionRepo struct {
	createFn                    func(ctx context.Context, tx *entity.PaymentTransaction) error
	findByReferenceFn           func(ctx context.Context, reference string) (*entity.PaymentTransaction, error)
	findByReferenceAndCompanyFn func(ctx context.Context, reference string, companyID uint64) (*entity.PaymentTransaction, error)
	markSuccessFn               func(ctx context.Context, reference string, paidAt time.Time) (bool, error)
	markFailedFn                func(ctx context.Context, reference string) error
}

func (m *mockTransactionRepo) Create(ctx context.Context, tx *entity.PaymentTransaction) error {
	if m.createFn != nil {
		return m.createFn(ctx, tx)
	}
	return nil
}

func (m *mockTransactionRepo) FindByReference(ctx context.Context, reference string) (*entity.PaymentTransaction, error) {
	if m.findByReferenceFn != nil {
		return m.findByReferenceFn(ctx, reference)
	}
	return nil, nil
}

func (m *mockTransactionRepo) FindByReferenceAndCompany(ctx context.Context, reference string, companyID uint64) (*entity.PaymentTransaction, error) {
	if m.findByReferenceAndCompanyFn != nil {
		return m.findByReferenceAndCompanyFn(ctx, reference, companyID)
	}
	return nil, nil
}

func (m *mockTransactionRepo) MarkSuccess(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	if m.markSuccessFn != nil {
		return m.markSuccessFn(ctx, reference, paidAt)
	}
	return true, nil
}

func (m *mockTransactionRepo) MarkFailed(ctx context.Context, reference string) error {
	if m.markFailedFn != nil {
		return m.markFailedFn(ctx, reference)
	}
	return nil
}

type mockSubscriptionRepo struct {
	createFn             func(ctx context.Context, subscription *entity.Subscription) error
	findByCompanyIDFn    func(ctx context.Context, companyID uint64) (*entity.Subscription, error)
	findByCustomerCodeFn func(ctx context.Context, customerCode string) (*entity.Subscription, error)
	activateFn           func(ctx context.Context, companyID, planID uint64, periodStart, periodEnd time.Time, customerCode, subscriptionCode *string) error
	markCancelledFn      func(ctx context.Context, companyID uint64) error
	markPastDueFn        func(ctx context.Context, companyID uint64) error
	listLapsedFn         func(ctx context.Context, now time.Time) ([]*entity.Subscription, error)
	markExpiredFn        func(ctx context.Context, id uint64, fromStatus string) error
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, subscription *entity.Subscription) error {
	if m.createFn != nil {
		return m.createFn(ctx, subscription)
	}
	return nil
}

func (m *mockSubscriptionRepo) FindByCompanyID(ctx context.Context, companyID uint64) (*entity.Subscription, error) {
	if m.findByCompanyIDFn != nil {
		return m.findByCompanyIDFn(ctx, companyID)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) FindByCustomerCode(ctx context.Context, customerCode string) (*entity.Subscription, error) {
	if m.findByCustomerCodeFn != nil {
		return m.findByCustomerCodeFn(ctx, customerCode)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) Activate(ctx context.Context, companyID, planID uint64, periodStart, periodEnd time.Time, customerCode, subscriptionCode *string) error {
	if m.activateFn != nil {
		return m.activateFn(ctx, companyID, planID, periodStart, periodEnd, customerCode, subscriptionCode)
	}
	return nil
}

func (m *mockSubscriptionRepo) MarkCancelled(ctx context.Context, companyID uint64) error {
	if m.markCancelledFn != nil {
		return m.markCancelledFn(ctx, companyID)
	}
	return nil
}

func (m *mockSubscriptionRepo) MarkPastDue(ctx context.Context, companyID uint64) error {
	if m.markPastDueFn != nil {
		return m.markPastDueFn(ctx, companyID)
	}
	return nil
}

func (m *mockSubscriptionRepo) ListLapsed(ctx context.Context, now time.Time) ([]*entity.Subscription, error) {
	if m.listLapsedFn != nil {
		return m.listLapsedFn(ctx, now)
	}
	return nil, nil
}

func (m *mockSubscriptionRepo) MarkExpired(ctx context.Context, id uint64, fromStatus string) error {
	if m.markExpiredFn != nil {
		return m.markExpiredFn(ctx, id, fromStatus)
	}
	return nil
}

// memTransactionRepo reproduces the storage layer's conditional-update
// semantics in memory so interleaved reconciliation attempts can race for
// real in tests.
type memTransactionRepo struct {
	mu           sync.Mutex
	transactions map[string]*entity.PaymentTransaction
}

func newMemTransactionRepo(seed ...*entity.PaymentTransaction) *memTransactionRepo {
	repo := &memTransactionRepo{transactions: make(map[string]*entity.PaymentTransaction)}
	for _, tx := range seed {
		copied := *tx
		repo.transactions[tx.Reference] = &copied
	}
	return repo
}

func (m *memTransactionRepo) Create(_ context.Context, tx *entity.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.transactions[tx.Reference]; exists {
		return repository.ErrTransactionAlreadyExists
	}
	copied := *tx
	m.transactions[tx.Reference] = &copied
	return nil
}

func (m *memTransactionRepo) FindByReference(_ context.Context, reference string) (*entity.PaymentTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok {
		return nil, nil
	}
	copied := *tx
	return &copied, nil
}

func (m *memTransactionRepo) FindByReferenceAndCompany(ctx context.Context, reference string, companyID uint64) (*entity.PaymentTransaction, error) {
	tx, err := m.FindByReference(ctx, reference)
	if err != nil || tx == nil || tx.CompanyID != companyID {
		return nil, err
	}
	return tx, nil
}

// MarkSuccess is the race arbiter: exactly one caller per reference sees
// true, mirroring "UPDATE ... WHERE status <> success" affecting one row.
func (m *memTransactionRepo) MarkSuccess(_ context.Context, reference string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[reference]
	if !ok || tx.Status == entity.TransactionStatusSuccess {
		return false, nil
	}
	tx.Status = entity.TransactionStatusSuccess
	tx.PaidAt = &paidAt
	return true, nil
}

func (m *memTransactionRepo) MarkFailed(_ context.Context, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.transactions[reference]; ok && tx.Status == entity.TransactionStatusPending {
		tx.Status = entity.TransactionStatusFailed
	}
	return nil
}

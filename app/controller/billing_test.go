package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Rans7ord/Construction-sub000/app/dto"
	"github.com/Rans7ord/Construction-sub000/app/entitlement"
	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/gateway"
	"github.com/Rans7ord/Construction-sub000/app/guard"
	"github.com/Rans7ord/Construction-sub000/app/service"
)

type mockSubscriptionStatusService struct {
	createTrialFn func(ctx context.Context, companyID uint64) (*entity.Subscription, error)
	getStatusFn   func(ctx context.Context, companyID uint64) (*service.StatusSnapshot, error)
	listPlansFn   func(ctx context.Context) ([]*entity.Plan, error)
}

func (m *mockSubscriptionStatusService) CreateTrial(ctx context.Context, companyID uint64) (*entity.Subscription, error) {
	return m.createTrialFn(ctx, companyID)
}

func (m *mockSubscriptionStatusService) GetStatus(ctx context.Context, companyID uint64) (*service.StatusSnapshot, error) {
	return m.getStatusFn(ctx, companyID)
}

func (m *mockSubscriptionStatusService) ListPlans(ctx context.Context) ([]*entity.Plan, error) {
	return m.listPlansFn(ctx)
}

type mockCheckoutService struct {
	initializeFn func(ctx context.Context, companyID, planID uint64, email string) (*service.InitializeResult, error)
}

func (m *mockCheckoutService) InitializePayment(ctx context.Context, companyID, planID uint64, email string) (*service.InitializeResult, error) {
	return m.initializeFn(ctx, companyID, planID, email)
}

type mockReconcileService struct {
	verifyFn  func(ctx context.Context, companyID uint64, reference string) (*service.Result, error)
	webhookFn func(ctx context.Context, body []byte, signature string) error
}

func (m *mockReconcileService) VerifyPayment(ctx context.Context, companyID uint64, reference string) (*service.Result, error) {
	return m.verifyFn(ctx, companyID, reference)
}

func (m *mockReconcileService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.webhookFn(ctx, body, signature)
}

type mockResourceGuard struct {
	projectFn func(ctx context.Context, companyID uint64) (guard.Decision, error)
	userFn    func(ctx context.Context, companyID uint64) (guard.Decision, error)
	featureFn func(ctx context.Context, companyID uint64, featureKey string) (guard.Decision, error)
}

func (m *mockResourceGuard) CanCreateProject(ctx context.Context, companyID uint64) (guard.Decision, error) {
	return m.projectFn(ctx, companyID)
}

func (m *mockResourceGuard) CanAddUser(ctx context.Context, companyID uint64) (guard.Decision, error) {
	return m.userFn(ctx, companyID)
}

func (m *mockResourceGuard) CanUseFeature(ctx context.Context, companyID uint64, featureKey string) (guard.Decision, error) {
	return m.featureFn(ctx, companyID, featureKey)
}

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set(companyIDContextKey, uint64(7))
	return ctx, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	c := NewBillingController(nil, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/health", "")

	if err := c.Health(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListPlans(t *testing.T) {
	subs := &mockSubscriptionStatusService{listPlansFn: func(context.Context) ([]*entity.Plan, error) {
		return []*entity.Plan{
			{ID: 1, Name: "Basic", PriceCents: 100000, MaxProjects: 3, MaxUsers: 5},
			{ID: 2, Name: "Starter", PriceCents: 250000},
		}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/plans", "")

	if err := c.ListPlans(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ListPlansResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Plans) != 2 || resp.Plans[0].Name != "Basic" {
		t.Fatalf("unexpected plans payload: %+v", resp.Plans)
	}
}

func TestGetSubscription(t *testing.T) {
	end := time.Now().UTC().Add(10 * 24 * time.Hour)
	subs := &mockSubscriptionStatusService{getStatusFn: func(_ context.Context, companyID uint64) (*service.StatusSnapshot, error) {
		if companyID != 7 {
			t.Fatalf("expected the authenticated company, got %d", companyID)
		}
		return &service.StatusSnapshot{
			Subscription: &entity.Subscription{ID: 4, CompanyID: 7, PlanID: 2, Status: entity.SubscriptionStatusActive, CurrentPeriodEnd: &end},
			Plan:         &entity.Plan{ID: 2, Name: "Starter"},
			Entitlement:  entitlement.Entitlement{IsActive: true},
		}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/subscription", "")

	if err := c.GetSubscription(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.SubscriptionStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Subscription == nil || resp.Subscription.Status != entity.SubscriptionStatusActive {
		t.Fatalf("unexpected subscription payload: %+v", resp.Subscription)
	}
	if !resp.Entitlement.IsActive {
		t.Fatal("expected an active entitlement")
	}
}

func TestCreateTrialSubscription(t *testing.T) {
	start := time.Now().UTC()
	end := start.Add(entity.TrialPeriodDays * 24 * time.Hour)
	subs := &mockSubscriptionStatusService{createTrialFn: func(_ context.Context, companyID uint64) (*entity.Subscription, error) {
		if companyID != 7 {
			t.Fatalf("expected the authenticated company, got %d", companyID)
		}
		return &entity.Subscription{
			ID:            4,
			CompanyID:     7,
			PlanID:        1,
			Status:        entity.SubscriptionStatusTrialing,
			TrialStartsAt: &start,
			TrialEndsAt:   &end,
		}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodPost, "/subscription/trial", "")

	if err := c.CreateTrialSubscription(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp dto.SubscriptionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != entity.SubscriptionStatusTrialing || resp.TrialEndsAt == nil {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestCreateTrialSubscriptionErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantCode   int
	}{
		{"already subscribed", service.ErrSubscriptionAlreadyExists, http.StatusConflict},
		{"no active plan", service.ErrPlanNotFound, http.StatusNotFound},
		{"invalid", service.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subs := &mockSubscriptionStatusService{createTrialFn: func(context.Context, uint64) (*entity.Subscription, error) {
				return nil, tc.serviceErr
			}}
			c := NewBillingController(subs, nil, nil, nil)
			ctx, rec := newTestContext(http.MethodPost, "/subscription/trial", "")

			if err := c.CreateTrialSubscription(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
		})
	}
}

func TestGetSubscriptionNone(t *testing.T) {
	subs := &mockSubscriptionStatusService{getStatusFn: func(context.Context, uint64) (*service.StatusSnapshot, error) {
		return &service.StatusSnapshot{Entitlement: entitlement.Entitlement{IsExpired: true}}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/subscription", "")

	if err := c.GetSubscription(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.SubscriptionStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Subscription != nil || resp.Plan != nil {
		t.Fatal("expected null subscription and plan")
	}
	if !resp.Entitlement.IsExpired {
		t.Fatal("expected an expired entitlement")
	}
}

func TestGetEntitlements(t *testing.T) {
	subs := &mockSubscriptionStatusService{getStatusFn: func(context.Context, uint64) (*service.StatusSnapshot, error) {
		return &service.StatusSnapshot{
			Subscription: &entity.Subscription{ID: 4, Status: entity.SubscriptionStatusTrialing},
			Plan:         &entity.Plan{ID: 1, MaxProjects: 3, MaxUsers: 5, Features: entity.PlanFeatures{BudgetTracking: true}},
			Entitlement:  entitlement.Entitlement{IsActive: true, IsTrial: true, DaysLeftInTrial: 9},
		}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/subscription/entitlements", "")

	if err := c.GetEntitlements(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.EntitlementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Entitlement.IsTrial || resp.Entitlement.DaysLeftInTrial != 9 {
		t.Fatalf("unexpected entitlement: %+v", resp.Entitlement)
	}
	if resp.MaxProjects != 3 || resp.MaxUsers != 5 {
		t.Fatalf("unexpected quotas: %+v", resp)
	}
	if !resp.Features[entity.FeatureBudgetTracking] || resp.Features[entity.FeatureReports] {
		t.Fatalf("unexpected features: %+v", resp.Features)
	}
}

func TestGetEntitlementsNoSubscription(t *testing.T) {
	subs := &mockSubscriptionStatusService{getStatusFn: func(context.Context, uint64) (*service.StatusSnapshot, error) {
		return &service.StatusSnapshot{Entitlement: entitlement.Entitlement{IsExpired: true}}, nil
	}}
	c := NewBillingController(subs, nil, nil, nil)
	ctx, rec := newTestContext(http.MethodGet, "/subscription/entitlements", "")

	if err := c.GetEntitlements(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var resp dto.EntitlementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Entitlement.IsExpired || resp.MaxProjects != 0 || len(resp.Features) != 0 {
		t.Fatalf("expected a locked-out payload, got %+v", resp)
	}
}

func TestInitializePayment(t *testing.T) {
	checkout := &mockCheckoutService{initializeFn: func(_ context.Context, companyID, planID uint64, email string) (*service.InitializeResult, error) {
		if companyID != 7 || planID != 2 || email != "owner@sitebuild.example" {
			t.Fatalf("unexpected arguments: %d %d %s", companyID, planID, email)
		}
		return &service.InitializeResult{
			AuthorizationURL: "https://checkout.example/x",
			AccessCode:       "access_x",
			Reference:        "CSB-7-abc",
			AmountCents:      250000,
		}, nil
	}}
	c := NewBillingController(nil, checkout, nil, nil)
	ctx, rec := newTestContext(http.MethodPost, "/payments/initialize", `{"plan_id":2,"email":"owner@sitebuild.example"}`)

	if err := c.InitializePayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp dto.InitializePaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reference != "CSB-7-abc" || resp.AuthorizationURL == "" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestInitializePaymentErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantCode   int
	}{
		{"plan not found", service.ErrPlanNotFound, http.StatusNotFound},
		{"gateway rejected", service.ErrGatewayRejected, http.StatusBadGateway},
		{"gateway down", service.ErrGatewayUnavailable, http.StatusBadGateway},
		{"invalid", service.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckoutService{initializeFn: func(context.Context, uint64, uint64, string) (*service.InitializeResult, error) {
				return nil, tc.serviceErr
			}}
			c := NewBillingController(nil, checkout, nil, nil)
			ctx, rec := newTestContext(http.MethodPost, "/payments/initialize", `{"plan_id":2,"email":"owner@sitebuild.example"}`)

			if err := c.InitializePayment(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
		})
	}
}

func TestInitializePaymentValidation(t *testing.T) {
	c := NewBillingController(nil, &mockCheckoutService{}, nil, nil)

	cases := []struct {
		name string
		body string
	}{
		{"missing plan", `{"email":"a@b.c"}`},
		{"missing email", `{"plan_id":2}`},
		{"bad email", `{"plan_id":2,"email":"not-an-address"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, rec := newTestContext(http.MethodPost, "/payments/initialize", tc.body)
			if err := c.InitializePayment(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	reconcile := &mockReconcileService{verifyFn: func(_ context.Context, companyID uint64, reference string) (*service.Result, error) {
		if companyID != 7 || reference != "CSB-7-abc" {
			t.Fatalf("unexpected arguments: %d %s", companyID, reference)
		}
		return &service.Result{TransactionStatus: entity.TransactionStatusSuccess, Activated: true}, nil
	}}
	c := NewBillingController(nil, nil, reconcile, nil)
	ctx, rec := newTestContext(http.MethodPost, "/payments/verify", `{"reference":"CSB-7-abc"}`)

	if err := c.VerifyPayment(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.VerifyPaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Activated || resp.TransactionStatus != entity.TransactionStatusSuccess {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestVerifyPaymentErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantCode   int
		wantError  string
	}{
		{"not found", service.ErrTransactionNotFound, http.StatusNotFound, "payment transaction not found"},
		{"gateway rejected", service.ErrGatewayRejected, http.StatusBadGateway, "payment gateway rejected the verification"},
		{"gateway down", service.ErrGatewayUnavailable, http.StatusBadGateway, "payment gateway unavailable, try again"},
		{"inconsistent", service.ErrInconsistentState, http.StatusInternalServerError, "payment received; contact support to finish activation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reconcile := &mockReconcileService{verifyFn: func(context.Context, uint64, string) (*service.Result, error) {
				return nil, tc.serviceErr
			}}
			c := NewBillingController(nil, nil, reconcile, nil)
			ctx, rec := newTestContext(http.MethodPost, "/payments/verify", `{"reference":"CSB-7-abc"}`)

			if err := c.VerifyPayment(ctx); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}

			var resp dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error != tc.wantError {
				t.Fatalf("expected error %q, got %q", tc.wantError, resp.Error)
			}
		})
	}
}

func TestWebhookBadSignature(t *testing.T) {
	var received string
	reconcile := &mockReconcileService{webhookFn: func(_ context.Context, _ []byte, signature string) error {
		received = signature
		return service.ErrSignatureInvalid
	}}
	c := NewBillingController(nil, nil, reconcile, nil)
	ctx, rec := newTestContext(http.MethodPost, "/webhooks/paystack", `{"event":"charge.success"}`)
	ctx.Request().Header.Set(gateway.SignatureHeader, "deadbeef")

	if err := c.Webhook(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if received != "deadbeef" {
		t.Fatalf("expected the raw header to be forwarded, got %q", received)
	}
}

func TestWebhookForwardsRawBody(t *testing.T) {
	body := `{"event":"charge.success","data":{"reference":"CSB-7-abc"}}`
	var forwarded []byte
	reconcile := &mockReconcileService{webhookFn: func(_ context.Context, b []byte, _ string) error {
		forwarded = b
		return nil
	}}
	c := NewBillingController(nil, nil, reconcile, nil)
	ctx, rec := newTestContext(http.MethodPost, "/webhooks/paystack", body)

	if err := c.Webhook(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if string(forwarded) != body {
		t.Fatalf("body must reach the service byte for byte, got %q", forwarded)
	}
}

func TestWebhookProcessingFailureIsRetryable(t *testing.T) {
	reconcile := &mockReconcileService{webhookFn: func(context.Context, []byte, string) error {
		return context.DeadlineExceeded
	}}
	c := NewBillingController(nil, nil, reconcile, nil)
	ctx, rec := newTestContext(http.MethodPost, "/webhooks/paystack", `{"event":"charge.success"}`)

	if err := c.Webhook(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the gateway redelivers, got %d", rec.Code)
	}
}

func TestGuardEndpoints(t *testing.T) {
	g := &mockResourceGuard{
		projectFn: func(context.Context, uint64) (guard.Decision, error) {
			return guard.Decision{Allowed: false, Reason: "project limit reached on the Basic plan"}, nil
		},
		userFn: func(context.Context, uint64) (guard.Decision, error) {
			return guard.Decision{Allowed: true}, nil
		},
		featureFn: func(_ context.Context, _ uint64, featureKey string) (guard.Decision, error) {
			return guard.Decision{Allowed: featureKey == entity.FeatureReports}, nil
		},
	}
	c := NewBillingController(nil, nil, nil, g)

	ctx, rec := newTestContext(http.MethodGet, "/guards/project", "")
	if err := c.CanCreateProject(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	var decision dto.DecisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decision.Allowed || decision.Reason == "" {
		t.Fatalf("expected a denial with a reason, got %+v", decision)
	}

	ctx, rec = newTestContext(http.MethodGet, "/guards/user", "")
	if err := c.CanAddUser(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed, got %+v", decision)
	}

	ctx, rec = newTestContext(http.MethodGet, "/guards/feature?feature=reports", "")
	if err := c.CanUseFeature(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected reports allowed, got %+v", decision)
	}
}

func TestCanUseFeatureRequiresKey(t *testing.T) {
	c := NewBillingController(nil, nil, nil, &mockResourceGuard{})
	ctx, rec := newTestContext(http.MethodGet, "/guards/feature", "")

	if err := c.CanUseFeature(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

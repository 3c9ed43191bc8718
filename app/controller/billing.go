package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Rans7ord/Construction-sub000/app/dto"
	"github.com/Rans7ord/Construction-sub000/app/entity"
	"github.com/Rans7ord/Construction-sub000/app/factory"
	"github.com/Rans7ord/Construction-sub000/app/gateway"
	"github.com/Rans7ord/Construction-sub000/app/guard"
	"github.com/Rans7ord/Construction-sub000/app/mapper"
	"github.com/Rans7ord/Construction-sub000/app/service"
	"github.com/Rans7ord/Construction-sub000/app/types"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 65536

type subscriptionStatusService interface {
	CreateTrial(ctx context.Context, companyID uint64) (*entity.Subscription, error)
	GetStatus(ctx context.Context, companyID uint64) (*service.StatusSnapshot, error)
	ListPlans(ctx context.Context) ([]*entity.Plan, error)
}

type checkoutService interface {
	InitializePayment(ctx context.Context, companyID, planID uint64, email string) (*service.InitializeResult, error)
}

type reconcileService interface {
	VerifyPayment(ctx context.Context, companyID uint64, reference string) (*service.Result, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

type resourceGuard interface {
	CanCreateProject(ctx context.Context, companyID uint64) (guard.Decision, error)
	CanAddUser(ctx context.Context, companyID uint64) (guard.Decision, error)
	CanUseFeature(ctx context.Context, companyID uint64, featureKey string) (guard.Decision, error)
}

type BillingController struct {
	subscriptions subscriptionStatusService
	checkout      checkoutService
	reconcile     reconcileService
	guard         resourceGuard
	logger        logrus.FieldLogger
}

func NewBillingController(
	subscriptions subscriptionStatusService,
	checkout checkoutService,
	reconcile reconcileService,
	resourceGuard resourceGuard,
) *BillingController {
	return &BillingController{
		subscriptions: subscriptions,
		checkout:      checkout,
		reconcile:     reconcile,
		guard:         resourceGuard,
		logger:        factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

func (c *BillingController) ListPlans(ctx echo.Context) error {
	items, err := c.subscriptions.ListPlans(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("List plans failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPlansResponse{Plans: mapper.PlansToResponse(items)})
}

// CreateTrialSubscription is the signup hook: the tenant service calls it
// once per freshly created company to mint the trial row.
func (c *BillingController) CreateTrialSubscription(ctx echo.Context) error {
	subscription, err := c.subscriptions.CreateTrial(ctx.Request().Context(), companyIDFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubscriptionAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, "company already has a subscription")
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "no active plan to start the trial on")
		default:
			c.logger.WithError(err).Error("Create trial subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.SubscriptionToResponse(subscription))
}

func (c *BillingController) GetSubscription(ctx echo.Context) error {
	snapshot, err := c.subscriptions.GetStatus(ctx.Request().Context(), companyIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("Get subscription status failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.SubscriptionStatusResponse{
		Subscription: mapper.SubscriptionToResponse(snapshot.Subscription),
		Plan:         mapper.PlanToResponse(snapshot.Plan),
		Entitlement:  mapper.EntitlementToResponse(snapshot.Entitlement),
	})
}

// GetEntitlements is the flattened read for other services gating requests:
// entitlement verdict plus the plan's quotas and feature flags in one call.
func (c *BillingController) GetEntitlements(ctx echo.Context) error {
	snapshot, err := c.subscriptions.GetStatus(ctx.Request().Context(), companyIDFromContext(ctx))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("Get entitlements failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.EntitlementsToResponse(snapshot.Entitlement, snapshot.Plan))
}

func (c *BillingController) InitializePayment(ctx echo.Context) error {
	req, err := types.NewInitializePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkout.InitializePayment(ctx.Request().Context(), companyIDFromContext(ctx), req.PlanID, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found")
		case errors.Is(err, service.ErrGatewayRejected):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway rejected the request")
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable, try again")
		default:
			c.logger.WithError(err).Error("Initialize payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &dto.InitializePaymentResponse{
		AuthorizationURL: result.AuthorizationURL,
		AccessCode:       result.AccessCode,
		Reference:        result.Reference,
		AmountCents:      result.AmountCents,
	})
}

func (c *BillingController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.reconcile.VerifyPayment(ctx.Request().Context(), companyIDFromContext(ctx), req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTransactionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment transaction not found")
		case errors.Is(err, service.ErrGatewayRejected):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway rejected the verification")
		case errors.Is(err, service.ErrGatewayUnavailable):
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable, try again")
		case errors.Is(err, service.ErrInconsistentState):
			c.logger.WithError(err).WithField("reference", req.Reference).Error("Payment verified but state inconsistent")
			return c.writeError(ctx, http.StatusInternalServerError, "payment received; contact support to finish activation")
		default:
			c.logger.WithError(err).Error("Verify payment failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.VerifyPaymentResponse{
		Reference:         req.Reference,
		TransactionStatus: result.TransactionStatus,
		Activated:         result.Activated,
		AlreadyProcessed:  result.AlreadyProcessed,
	})
}

// Webhook receives the gateway's server-to-server events. The raw body is
// read before anything else so signature verification covers exactly the
// bytes the gateway signed.
func (c *BillingController) Webhook(ctx echo.Context) error {
	ctx.Request().Body = http.MaxBytesReader(ctx.Response().Writer, ctx.Request().Body, maxWebhookBodyBytes)
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "could not read request body")
	}

	signature := ctx.Request().Header.Get(gateway.SignatureHeader)
	if err := c.reconcile.HandleWebhook(ctx.Request().Context(), body, signature); err != nil {
		switch {
		case errors.Is(err, service.ErrSignatureInvalid):
			return c.writeError(ctx, http.StatusUnauthorized, "signature verification failed")
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		default:
			// A retryable failure: the gateway redelivers on non-2xx.
			c.logger.WithError(err).Error("Webhook processing failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &dto.MessageResponse{Message: "received"})
}

func (c *BillingController) CanCreateProject(ctx echo.Context) error {
	decision, err := c.guard.CanCreateProject(ctx.Request().Context(), companyIDFromContext(ctx))
	if err != nil {
		c.logger.WithError(err).Error("Project guard check failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &dto.DecisionResponse{Allowed: decision.Allowed, Reason: decision.Reason})
}

func (c *BillingController) CanAddUser(ctx echo.Context) error {
	decision, err := c.guard.CanAddUser(ctx.Request().Context(), companyIDFromContext(ctx))
	if err != nil {
		c.logger.WithError(err).Error("User guard check failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &dto.DecisionResponse{Allowed: decision.Allowed, Reason: decision.Reason})
}

func (c *BillingController) CanUseFeature(ctx echo.Context) error {
	req, err := types.NewFeatureCheckRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	decision, err := c.guard.CanUseFeature(ctx.Request().Context(), companyIDFromContext(ctx), req.FeatureKey)
	if err != nil {
		c.logger.WithError(err).Error("Feature guard check failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &dto.DecisionResponse{Allowed: decision.Allowed, Reason: decision.Reason})
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}

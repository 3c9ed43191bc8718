package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type InitializePaymentRequest struct {
	PlanID uint64 `json:"plan_id"`
	Email  string `json:"email"`
}

func NewInitializePaymentRequestFromContext(ctx echo.Context) (*InitializePaymentRequest, error) {
	var body InitializePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = strings.TrimSpace(body.Email)
	return &body, nil
}

func (r *InitializePaymentRequest) Validate() error {
	if r.PlanID == 0 {
		return errors.New("plan_id is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.New("email must be a valid address")
	}
	return nil
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference"`
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	var body VerifyPaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Reference = strings.TrimSpace(body.Reference)
	return &body, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("reference is required")
	}
	return nil
}

type FeatureCheckRequest struct {
	FeatureKey string
}

func NewFeatureCheckRequestFromContext(ctx echo.Context) (*FeatureCheckRequest, error) {
	return &FeatureCheckRequest{
		FeatureKey: strings.TrimSpace(ctx.QueryParam("feature")),
	}, nil
}

func (r *FeatureCheckRequest) Validate() error {
	if r.FeatureKey == "" {
		return errors.New("feature query parameter is required")
	}
	return nil
}

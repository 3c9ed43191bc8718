package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rans7ord/Construction-sub000/app/factory"
	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.paystack.co"

// PaystackClient talks to the Paystack REST API. Paystack ships no official
// Go SDK, so the two endpoints this engine needs are called directly.
type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewPaystackClient(baseURL, secretKey string, timeout time.Duration) *PaystackClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &PaystackClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     factory.NewModuleLogger("paystack-client"),
	}
}

type initializeBody struct {
	Amount      int64           `json:"amount"`
	Email       string          `json:"email"`
	Reference   string          `json:"reference"`
	CallbackURL string          `json:"callback_url,omitempty"`
	Metadata    TransactionMeta `json:"metadata"`
}

// TransactionMeta is echoed back verbatim by Paystack on verify responses
// and webhook events. flexibleID absorbs the provider's habit of returning
// numbers where strings were sent and vice versa; the typed accessors keep
// that looseness from leaking past this package.
type TransactionMeta struct {
	CompanyID flexibleID `json:"company_id"`
	PlanID    flexibleID `json:"plan_id"`
}

func (m TransactionMeta) CompanyIDValue() uint64 {
	return uint64(m.CompanyID)
}

func (m TransactionMeta) PlanIDValue() uint64 {
	return uint64(m.PlanID)
}

// flexibleID decodes a numeric id whether the provider sends it as a JSON
// number or a quoted string. Unparseable values decode to zero, which the
// reconciliation layer treats as absent metadata.
type flexibleID uint64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexibleID(v)
	return nil
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status   string          `json:"status"`
	Amount   int64           `json:"amount"`
	PaidAt   string          `json:"paid_at"`
	Metadata TransactionMeta `json:"metadata"`
	Customer struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
	Subscription struct {
		SubscriptionCode string `json:"subscription_code"`
	} `json:"subscription"`
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	body := initializeBody{
		Amount:      req.AmountCents,
		Email:       req.Email,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata: TransactionMeta{
			CompanyID: flexibleID(req.CompanyID),
			PlanID:    flexibleID(req.PlanID),
		},
	}

	var data initializeData
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return nil, err
	}

	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*Outcome, error) {
	var data verifyData
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &data); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Reference:        reference,
		Succeeded:        strings.EqualFold(data.Status, "success"),
		AmountCents:      data.Amount,
		CustomerCode:     data.Customer.CustomerCode,
		SubscriptionCode: data.Subscription.SubscriptionCode,
		CompanyID:        data.Metadata.CompanyIDValue(),
		PlanID:           data.Metadata.PlanIDValue(),
	}
	if data.PaidAt != "" {
		if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			paidAt = paidAt.UTC()
			outcome.PaidAt = &paidAt
		}
	}

	return outcome, nil
}

func (c *PaystackClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: malformed provider response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		c.logger.WithFields(logrus.Fields{
			"path":        path,
			"http_status": resp.StatusCode,
			"message":     envelope.Message,
		}).Warn("Gateway rejected request")
		return fmt.Errorf("%w: %s", ErrRejected, envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("%w: malformed provider data: %v", ErrUnavailable, err)
		}
	}

	return nil
}

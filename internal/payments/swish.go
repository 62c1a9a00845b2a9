package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/northcart/storefront-backend/pkg/config"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

const swishBodyReadLimit int64 = 1024

// swishProvider speaks the Swish commerce payment-request wire: charges are
// push payments the customer approves in their app, so a fresh charge always
// comes back pending with an app redirect.
type swishProvider struct {
	httpClient  *http.Client
	baseURL     string
	merchantID  string
	callbackURL string
}

// NewSwishProvider builds the Swish push-payment gateway.
func NewSwishProvider(cfg config.SwishConfig, opts ...SwishOption) (Gateway, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "swish base url is required")
	}
	merchantID := strings.TrimSpace(cfg.MerchantID)
	if merchantID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "swish merchant id is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &swishProvider{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		merchantID:  merchantID,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// SwishOption configures optional provider behavior.
type SwishOption func(*swishProvider)

// WithSwishHTTPClient overrides the default HTTP client.
func WithSwishHTTPClient(client *http.Client) SwishOption {
	return func(p *swishProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

type swishPaymentRequest struct {
	PayeePaymentReference string `json:"payeePaymentReference"`
	PayeeAlias            string `json:"payeeAlias"`
	PayerAlias            string `json:"payerAlias,omitempty"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	CallbackURL           string `json:"callbackUrl,omitempty"`
	Message               string `json:"message,omitempty"`
}

type swishPaymentResponse struct {
	ID                  string `json:"id"`
	Status              string `json:"status"`
	PaymentRequestToken string `json:"paymentRequestToken"`
}

func (p *swishProvider) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payload := swishPaymentRequest{
		PayeePaymentReference: req.OrderRef,
		PayeeAlias:            p.merchantID,
		PayerAlias:            strings.TrimSpace(req.SourceToken),
		Amount:                req.Amount.StringFixed(2),
		Currency:              currencyOrDefault(req.Currency),
		CallbackURL:           p.callbackURL,
		Message:               fmt.Sprintf("NorthCart order %s", req.OrderRef),
	}

	var resp swishPaymentResponse
	if err := p.do(ctx, http.MethodPost, "/api/v1/paymentrequests", payload, &resp); err != nil {
		return nil, err
	}

	id := resp.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &Result{
		PaymentID:   id,
		Status:      StatusPending,
		RedirectURL: fmt.Sprintf("swish://paymentrequest?token=%s", url.QueryEscape(resp.PaymentRequestToken)),
	}, nil
}

func (p *swishProvider) VerifyPayment(ctx context.Context, paymentID string) (*Result, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var resp swishPaymentResponse
	path := "/api/v1/paymentrequests/" + url.PathEscape(paymentID)
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := &Result{PaymentID: paymentID, Status: StatusFailed}
	switch resp.Status {
	case "PAID":
		result.Status = StatusAuthorized
	case "CREATED":
		result.Status = StatusPending
	}
	return result, nil
}

func (p *swishProvider) RefundPayment(ctx context.Context, req RefundRequest) (*Result, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	payload := map[string]string{
		"originalPaymentReference": req.PaymentID,
		"payerAlias":               p.merchantID,
		"amount":                   req.Amount.StringFixed(2),
		"currency":                 currencyOrDefault(req.Currency),
		"message":                  req.Reason,
	}

	var resp swishPaymentResponse
	if err := p.do(ctx, http.MethodPost, "/api/v1/refunds", payload, &resp); err != nil {
		return nil, err
	}
	return &Result{PaymentID: req.PaymentID, Status: StatusRefunded}, nil
}

func (p *swishProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal swish request")
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build swish request")
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute swish request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, swishBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "swish request failed")
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode swish response")
	}
	return nil
}

func currencyOrDefault(currency string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(currency))
	if trimmed == "" {
		return "SEK"
	}
	return trimmed
}

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

	"github.com/northcart/storefront-backend/pkg/config"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

const bnplBodyReadLimit int64 = 1024

// bnplProvider speaks a Klarna-style session wire: a charge opens a credit
// session the customer completes on the provider's page.
type bnplProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewBNPLProvider builds the buy-now-pay-later gateway.
func NewBNPLProvider(cfg config.BNPLConfig, opts ...BNPLOption) (Gateway, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bnpl base url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bnpl api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p := &bnplProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// BNPLOption configures optional provider behavior.
type BNPLOption func(*bnplProvider)

// WithBNPLHTTPClient overrides the default HTTP client.
func WithBNPLHTTPClient(client *http.Client) BNPLOption {
	return func(p *bnplProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

type bnplSessionRequest struct {
	OrderReference    string `json:"order_reference"`
	CustomerReference string `json:"customer_reference,omitempty"`
	AmountMinor       int64  `json:"order_amount"`
	Currency          string `json:"purchase_currency"`
}

type bnplSessionResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

func (p *bnplProvider) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payload := bnplSessionRequest{
		OrderReference:    req.OrderRef,
		CustomerReference: req.CustomerRef,
		AmountMinor:       amountCents(req.Amount),
		Currency:          currencyOrDefault(req.Currency),
	}

	var resp bnplSessionResponse
	if err := p.do(ctx, http.MethodPost, "/payments/v1/sessions", payload, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bnpl session id missing from response")
	}

	return &Result{
		PaymentID:   resp.SessionID,
		Status:      StatusPending,
		RedirectURL: resp.RedirectURL,
	}, nil
}

func (p *bnplProvider) VerifyPayment(ctx context.Context, paymentID string) (*Result, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var resp bnplSessionResponse
	path := "/payments/v1/sessions/" + url.PathEscape(paymentID)
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result := &Result{PaymentID: paymentID, Status: StatusFailed, RedirectURL: resp.RedirectURL}
	switch strings.ToLower(resp.Status) {
	case "complete", "authorized":
		result.Status = StatusAuthorized
	case "incomplete", "pending":
		result.Status = StatusPending
	}
	return result, nil
}

func (p *bnplProvider) RefundPayment(ctx context.Context, req RefundRequest) (*Result, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	payload := map[string]any{
		"refunded_amount": amountCents(req.Amount),
		"currency":        currencyOrDefault(req.Currency),
		"description":     req.Reason,
	}

	path := "/payments/v1/sessions/" + url.PathEscape(req.PaymentID) + "/refunds"
	if err := p.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return nil, err
	}
	return &Result{PaymentID: req.PaymentID, Status: StatusRefunded}, nil
}

func (p *bnplProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal bnpl request")
		}
		reader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build bnpl request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute bnpl request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, bnplBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "bnpl request failed")
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode bnpl response")
	}
	return nil
}

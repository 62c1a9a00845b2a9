package payments

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"

	"github.com/northcart/storefront-backend/pkg/square"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

// cardAPI is the slice of the Square wrapper the card provider needs.
type cardAPI interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error)
}

type cardProvider struct {
	api cardAPI
}

// NewCardProvider builds the Square-backed card gateway.
func NewCardProvider(api cardAPI) (Gateway, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "square client is required")
	}
	return &cardProvider{api: api}, nil
}

func (p *cardProvider) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.SourceToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card source token is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}

	payment, err := p.api.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    amountCents(req.Amount),
		Currency:       req.Currency,
		SourceID:       req.SourceToken,
		ReferenceID:    req.OrderRef,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return cardResult(payment), nil
}

func (p *cardProvider) VerifyPayment(ctx context.Context, paymentID string) (*Result, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	payment, err := p.api.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return cardResult(payment), nil
}

func (p *cardProvider) RefundPayment(ctx context.Context, req RefundRequest) (*Result, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	refund, err := p.api.RefundPayment(ctx, square.RefundCreateParams{
		PaymentID:      req.PaymentID,
		AmountCents:    amountCents(req.Amount),
		Currency:       req.Currency,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	return &Result{PaymentID: req.PaymentID, Status: refundStatus(refund)}, nil
}

func cardResult(payment *sq.Payment) *Result {
	if payment == nil {
		return &Result{Status: StatusFailed}
	}
	result := &Result{Status: StatusFailed}
	if id := payment.GetID(); id != nil {
		result.PaymentID = *id
	}
	if status := payment.GetStatus(); status != nil {
		switch *status {
		case "COMPLETED", "APPROVED":
			result.Status = StatusAuthorized
		case "PENDING":
			result.Status = StatusPending
		}
	}
	return result
}

func refundStatus(refund *sq.PaymentRefund) Status {
	if refund == nil {
		return StatusFailed
	}
	if status := refund.GetStatus(); status != nil {
		switch *status {
		case "COMPLETED", "PENDING", "APPROVED":
			return StatusRefunded
		}
	}
	return StatusFailed
}

package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/northcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

// Status is the provider-neutral state of a payment.
type Status string

const (
	StatusAuthorized Status = "authorized"
	StatusPending    Status = "pending"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// Request carries everything a provider needs to take a payment.
type Request struct {
	Amount      decimal.Decimal
	Currency    string
	SourceToken string
	CustomerRef string
	OrderRef    string
	// IdempotencyKey dedupes retried charges. Providers generate one when
	// it is empty.
	IdempotencyKey string
}

// Result is the provider-neutral outcome of a payment operation.
type Result struct {
	PaymentID   string
	Status      Status
	RedirectURL string
}

// RefundRequest asks a provider to return money for a captured payment.
type RefundRequest struct {
	PaymentID      string
	Amount         decimal.Decimal
	Currency       string
	Reason         string
	IdempotencyKey string
}

// Gateway is one payment provider.
type Gateway interface {
	ProcessPayment(ctx context.Context, req Request) (*Result, error)
	VerifyPayment(ctx context.Context, paymentID string) (*Result, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*Result, error)
}

// Selector routes a payment method to its provider.
type Selector struct {
	providers map[enums.PaymentMethod]Gateway
}

// NewSelector wires the configured providers. Every method must have one.
func NewSelector(card, swish, bnpl Gateway) (*Selector, error) {
	if card == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "card provider is required")
	}
	if swish == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "swish provider is required")
	}
	if bnpl == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bnpl provider is required")
	}
	return &Selector{providers: map[enums.PaymentMethod]Gateway{
		enums.PaymentMethodCard:  card,
		enums.PaymentMethodSwish: swish,
		enums.PaymentMethodBNPL:  bnpl,
	}}, nil
}

// Gateway returns the provider handling the given method.
func (s *Selector) Gateway(method enums.PaymentMethod) (Gateway, error) {
	provider, ok := s.providers[method]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported payment method %q", method)
	}
	return provider, nil
}

func amountCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

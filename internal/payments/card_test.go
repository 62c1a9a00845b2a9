package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
	"github.com/northcart/storefront-backend/pkg/square"
)

type stubCardAPI struct {
	createParams square.PaymentCreateParams
	createResp   *sq.Payment
	createErr    error
	getResp      *sq.Payment
	refundParams square.RefundCreateParams
	refundResp   *sq.PaymentRefund
	refundErr    error
}

func (s *stubCardAPI) CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	s.createParams = params
	return s.createResp, s.createErr
}

func (s *stubCardAPI) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return s.getResp, nil
}

func (s *stubCardAPI) RefundPayment(ctx context.Context, params square.RefundCreateParams) (*sq.PaymentRefund, error) {
	s.refundParams = params
	return s.refundResp, s.refundErr
}

func strPtr(s string) *string { return &s }

func TestCardProcessPayment(t *testing.T) {
	api := &stubCardAPI{
		createResp: &sq.Payment{ID: strPtr("pay_1"), Status: strPtr("COMPLETED")},
	}
	provider, err := NewCardProvider(api)
	require.NoError(t, err)

	result, err := provider.ProcessPayment(context.Background(), Request{
		Amount:      decimal.NewFromFloat(987.46),
		Currency:    "SEK",
		SourceToken: "cnon:card-nonce",
		OrderRef:    "order-1203",
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_1", result.PaymentID)
	assert.Equal(t, StatusAuthorized, result.Status)
	assert.Equal(t, int64(98746), api.createParams.AmountCents)
	assert.Equal(t, "order-1203", api.createParams.ReferenceID)
}

func TestCardProcessPaymentValidation(t *testing.T) {
	provider, err := NewCardProvider(&stubCardAPI{})
	require.NoError(t, err)

	_, err = provider.ProcessPayment(context.Background(), Request{
		Amount: decimal.NewFromInt(10),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = provider.ProcessPayment(context.Background(), Request{
		SourceToken: "cnon:card-nonce",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCardProcessPaymentStatuses(t *testing.T) {
	tests := []struct {
		squareStatus string
		want         Status
	}{
		{"COMPLETED", StatusAuthorized},
		{"APPROVED", StatusAuthorized},
		{"PENDING", StatusPending},
		{"FAILED", StatusFailed},
		{"CANCELED", StatusFailed},
	}
	for _, tc := range tests {
		t.Run(tc.squareStatus, func(t *testing.T) {
			api := &stubCardAPI{createResp: &sq.Payment{ID: strPtr("p"), Status: strPtr(tc.squareStatus)}}
			provider, err := NewCardProvider(api)
			require.NoError(t, err)

			result, err := provider.ProcessPayment(context.Background(), Request{
				Amount:      decimal.NewFromInt(10),
				SourceToken: "cnon:nonce",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestCardVerifyPayment(t *testing.T) {
	api := &stubCardAPI{getResp: &sq.Payment{ID: strPtr("pay_1"), Status: strPtr("COMPLETED")}}
	provider, err := NewCardProvider(api)
	require.NoError(t, err)

	result, err := provider.VerifyPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, result.Status)

	_, err = provider.VerifyPayment(context.Background(), " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCardRefundPayment(t *testing.T) {
	api := &stubCardAPI{refundResp: &sq.PaymentRefund{ID: "ref_1", Status: strPtr("PENDING")}}
	provider, err := NewCardProvider(api)
	require.NoError(t, err)

	result, err := provider.RefundPayment(context.Background(), RefundRequest{
		PaymentID: "pay_1",
		Amount:    decimal.NewFromFloat(987.46),
		Currency:  "SEK",
		Reason:    "stock reservation failed",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, result.Status)
	assert.Equal(t, "pay_1", api.refundParams.PaymentID)
	assert.Equal(t, int64(98746), api.refundParams.AmountCents)
}

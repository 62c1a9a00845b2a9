package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcart/storefront-backend/pkg/config"
	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

func swishTestProvider(t *testing.T, handler http.Handler) Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewSwishProvider(config.SwishConfig{
		BaseURL:     server.URL,
		MerchantID:  "1231181189",
		CallbackURL: "https://shop.example.com/callbacks/swish",
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)
	return provider
}

func TestSwishProcessPayment(t *testing.T) {
	var captured swishPaymentRequest
	provider := swishTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/paymentrequests", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(swishPaymentResponse{
			ID:                  "5D59DA1B1632424E874DDB219AD54597",
			Status:              "CREATED",
			PaymentRequestToken: "tok-abc",
		})
	}))

	result, err := provider.ProcessPayment(context.Background(), Request{
		Amount:      decimal.NewFromFloat(987.46),
		Currency:    "sek",
		SourceToken: "46701234567",
		OrderRef:    "1203",
	})
	require.NoError(t, err)
	assert.Equal(t, "5D59DA1B1632424E874DDB219AD54597", result.PaymentID)
	assert.Equal(t, StatusPending, result.Status)
	assert.Contains(t, result.RedirectURL, "swish://paymentrequest?token=tok-abc")

	assert.Equal(t, "987.46", captured.Amount)
	assert.Equal(t, "SEK", captured.Currency)
	assert.Equal(t, "1231181189", captured.PayeeAlias)
	assert.Equal(t, "46701234567", captured.PayerAlias)
}

func TestSwishVerifyPayment(t *testing.T) {
	tests := []struct {
		wire string
		want Status
	}{
		{"PAID", StatusAuthorized},
		{"CREATED", StatusPending},
		{"DECLINED", StatusFailed},
	}
	for _, tc := range tests {
		t.Run(tc.wire, func(t *testing.T) {
			provider := swishTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "/api/v1/paymentrequests/abc123", r.URL.Path)
				_ = json.NewEncoder(w).Encode(swishPaymentResponse{ID: "abc123", Status: tc.wire})
			}))

			result, err := provider.VerifyPayment(context.Background(), "abc123")
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Status)
		})
	}
}

func TestSwishRefundPayment(t *testing.T) {
	provider := swishTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/refunds", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	}))

	result, err := provider.RefundPayment(context.Background(), RefundRequest{
		PaymentID: "abc123",
		Amount:    decimal.NewFromInt(100),
		Reason:    "reservation failed",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, result.Status)
}

func TestSwishUpstreamFailure(t *testing.T) {
	provider := swishTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorCode":"RF07"}`, http.StatusUnprocessableEntity)
	}))

	_, err := provider.ProcessPayment(context.Background(), Request{
		Amount: decimal.NewFromInt(50),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Contains(t, err.Error(), "RF07")
}

func TestSwishConfigValidation(t *testing.T) {
	_, err := NewSwishProvider(config.SwishConfig{BaseURL: "https://x", MerchantID: ""})
	assert.Error(t, err)
	_, err = NewSwishProvider(config.SwishConfig{BaseURL: "", MerchantID: "123"})
	assert.Error(t, err)
}

package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshpress/laundromat-backend/internal/gateway"
	"github.com/freshpress/laundromat-backend/internal/middleware"
	"github.com/freshpress/laundromat-backend/internal/models"
	"github.com/freshpress/laundromat-backend/internal/services"
)

type stubWalletService struct {
	TopUpFn         func(ctx context.Context, userID string, amount decimal.Decimal, method string) (services.TopUpIntent, error)
	SettleFn        func(ctx context.Context, gatewayTxID string) (services.SettleResult, error)
	SettleWebhookFn func(ctx context.Context, charge gateway.Charge) (services.SettleResult, error)

	webhookCalls int
	settleCalls  int
}

func (s *stubWalletService) TopUp(ctx context.Context, userID string, amount decimal.Decimal, method string) (services.TopUpIntent, error) {
	return s.TopUpFn(ctx, userID, amount, method)
}

func (s *stubWalletService) Settle(ctx context.Context, gatewayTxID string) (services.SettleResult, error) {
	s.settleCalls++
	return s.SettleFn(ctx, gatewayTxID)
}

func (s *stubWalletService) SettleWebhook(ctx context.Context, charge gateway.Charge) (services.SettleResult, error) {
	s.webhookCalls++
	return s.SettleWebhookFn(ctx, charge)
}

func (s *stubWalletService) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	return models.Wallet{UserID: userID, Balance: 500_00}, nil
}

func (s *stubWalletService) History(ctx context.Context, userID string, page, limit int) (services.HistoryPage, error) {
	return services.HistoryPage{Page: page, Limit: limit}, nil
}

func (s *stubWalletService) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return nil, nil
}

type stubVerifier struct{ ok bool }

func (v stubVerifier) VerifySignature(header string) bool { return v.ok }

func newTestHandler(svc WalletService, sigOK bool) *WalletHandler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWalletHandler(svc, stubVerifier{ok: sigOK}, "http://localhost:5173", log)
}

const chargeCompletedBody = `{
	"event": "charge.completed",
	"data": {"id": 4521, "tx_ref": "TOPUP-abc", "status": "successful", "amount": 1000, "currency": "NGN"}
}`

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), userID, "user"))
}

func TestTopUpReturnsPaymentLink(t *testing.T) {
	svc := &stubWalletService{
		TopUpFn: func(ctx context.Context, userID string, amount decimal.Decimal, method string) (services.TopUpIntent, error) {
			assert.Equal(t, "user-1", userID)
			assert.True(t, amount.Equal(decimal.NewFromInt(1000)))
			assert.Equal(t, "card", method)
			return services.TopUpIntent{PaymentLink: "https://checkout.example/pay/abc", Reference: "TOPUP-abc"}, nil
		},
	}
	h := newTestHandler(svc, true)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup",
		strings.NewReader(`{"amount": 1000}`)), "user-1")
	rec := httptest.NewRecorder()
	h.TopUp(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://checkout.example/pay/abc")
	assert.Contains(t, rec.Body.String(), "TOPUP-abc")
}

func TestTopUpRequiresAuth(t *testing.T) {
	h := newTestHandler(&stubWalletService{}, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount": 1000}`))
	rec := httptest.NewRecorder()
	h.TopUp(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTopUpErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"invalid amount", services.ErrInvalidAmount, http.StatusBadRequest},
		{"unknown user", services.ErrUserNotFound, http.StatusNotFound},
		{"gateway down", gateway.ErrUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWalletService{
				TopUpFn: func(ctx context.Context, userID string, amount decimal.Decimal, method string) (services.TopUpIntent, error) {
					return services.TopUpIntent{}, tc.err
				},
			}
			h := newTestHandler(svc, true)

			req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup",
				strings.NewReader(`{"amount": 1000}`)), "user-1")
			rec := httptest.NewRecorder()
			h.TopUp(rec, req)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestWebhookRejectsBadSignatureBeforeLookup(t *testing.T) {
	svc := &stubWalletService{}
	h := newTestHandler(svc, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(chargeCompletedBody))
	req.Header.Set("verif-hash", "wrong")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.webhookCalls, "rejected deliveries never reach the service")
}

func TestWebhookSettlesCharge(t *testing.T) {
	svc := &stubWalletService{
		SettleWebhookFn: func(ctx context.Context, charge gateway.Charge) (services.SettleResult, error) {
			assert.Equal(t, "TOPUP-abc", charge.Reference)
			assert.Equal(t, "4521", charge.GatewayTxID)
			return services.SettleResult{Status: services.SettleCredited}, nil
		},
	}
	h := newTestHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(chargeCompletedBody))
	req.Header.Set("verif-hash", "shared-hash")
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.webhookCalls)
}

func TestWebhookUnknownReference(t *testing.T) {
	svc := &stubWalletService{
		SettleWebhookFn: func(ctx context.Context, charge gateway.Charge) (services.SettleResult, error) {
			return services.SettleResult{}, services.ErrUnknownTransaction
		},
	}
	h := newTestHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(chargeCompletedBody))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookPendingChargeAcknowledged(t *testing.T) {
	svc := &stubWalletService{
		SettleWebhookFn: func(ctx context.Context, charge gateway.Charge) (services.SettleResult, error) {
			return services.SettleResult{}, services.ErrChargePending
		},
	}
	h := newTestHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(chargeCompletedBody))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "gateway redelivers; no error surfaced")
}

func TestWebhookIgnoresNonChargeEvents(t *testing.T) {
	svc := &stubWalletService{}
	h := newTestHandler(svc, true)

	body := `{"event": "transfer.completed", "data": {"id": 1}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.webhookCalls)
}

func TestWebhookMalformedPayload(t *testing.T) {
	svc := &stubWalletService{}
	h := newTestHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/webhook", strings.NewReader(`{"event":`))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.webhookCalls)
}

func TestVerifyRequiresTransactionID(t *testing.T) {
	svc := &stubWalletService{}
	h := newTestHandler(svc, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/verify", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.settleCalls)
}

func TestVerifyRedirectFlags(t *testing.T) {
	cases := []struct {
		name   string
		result services.SettleResult
		err    error
		flag   string
	}{
		{"credited", services.SettleResult{Status: services.SettleCredited}, nil, "success"},
		{"already settled", services.SettleResult{Status: services.SettleAlready}, nil, "already"},
		{"failed charge", services.SettleResult{Status: services.SettleFailed}, nil, "failed"},
		{"verify error", services.SettleResult{}, gateway.ErrUnavailable, "error"},
		{"unknown reference", services.SettleResult{}, services.ErrUnknownTransaction, "error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWalletService{
				SettleFn: func(ctx context.Context, gatewayTxID string) (services.SettleResult, error) {
					assert.Equal(t, "4521", gatewayTxID)
					return tc.result, tc.err
				},
			}
			h := newTestHandler(svc, true)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/verify?transaction_id=4521&status=successful", nil)
			rec := httptest.NewRecorder()
			h.Verify(rec, req)

			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "http://localhost:5173/wallet?verified="+tc.flag, rec.Header().Get("Location"))
		})
	}
}

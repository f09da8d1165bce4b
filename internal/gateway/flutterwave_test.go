package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateReturnsPaymentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TOPUP-abc", body["tx_ref"])
		assert.Equal(t, "1000", body["amount"])
		assert.Equal(t, "NGN", body["currency"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data":   map[string]any{"link": "https://checkout.flutterwave.com/v3/hosted/pay/xyz"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", "hash")
	link, err := c.Initiate(context.Background(), InitiateRequest{
		Reference:   "TOPUP-abc",
		Amount:      decimal.NewFromInt(1000),
		Currency:    "NGN",
		RedirectURL: "http://localhost/wallet/verify",
		Customer:    Customer{Email: "ada@example.com", Name: "Ada Obi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.flutterwave.com/v3/hosted/pay/xyz", link)
}

func TestInitiateNon2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", "hash")
	_, err := c.Initiate(context.Background(), InitiateRequest{Reference: "TOPUP-abc"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInitiateRejectedStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "error"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", "hash")
	_, err := c.Initiate(context.Background(), InitiateRequest{Reference: "TOPUP-abc"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyParsesChargeReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/4521/verify", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"id":       4521,
				"tx_ref":   "TOPUP-abc",
				"status":   "successful",
				"amount":   1000,
				"currency": "NGN",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test", "hash")
	charge, err := c.Verify(context.Background(), "4521")
	require.NoError(t, err)
	assert.Equal(t, "4521", charge.GatewayTxID)
	assert.Equal(t, "TOPUP-abc", charge.Reference)
	assert.Equal(t, StatusSuccessful, charge.Status)
	assert.True(t, charge.Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "NGN", charge.Currency)
}

func TestVerifyTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, "sk_test", "hash")
	_, err := c.Verify(context.Background(), "4521")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("http://unused", "sk_test", "shared-hash")

	assert.True(t, c.VerifySignature("shared-hash"))
	assert.False(t, c.VerifySignature("wrong-hash"))
	assert.False(t, c.VerifySignature(""))

	unset := NewClient("http://unused", "sk_test", "")
	assert.False(t, unset.VerifySignature(""), "unset secret never matches")
}

func TestParseWebhookChargeCompleted(t *testing.T) {
	raw := []byte(`{
		"event": "charge.completed",
		"data": {"id": 4521, "tx_ref": "TOPUP-abc", "status": "successful", "amount": 1000, "currency": "NGN"}
	}`)

	ev, err := ParseWebhook(raw)
	require.NoError(t, err)

	charge, ok := ev.Charge()
	require.True(t, ok)
	assert.Equal(t, "4521", charge.GatewayTxID)
	assert.Equal(t, "TOPUP-abc", charge.Reference)
	assert.Equal(t, StatusSuccessful, charge.Status)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"event": "transfer.completed", "data": {"id": 1}}`))
	require.NoError(t, err)

	_, ok := ev.Charge()
	assert.False(t, ok)
}

func TestParseWebhookMalformed(t *testing.T) {
	_, err := ParseWebhook([]byte(`{"event":`))
	assert.Error(t, err)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/freshpress/laundromat-backend/internal/api/httpx"
	"github.com/freshpress/laundromat-backend/internal/gateway"
	"github.com/freshpress/laundromat-backend/internal/metrics"
	"github.com/freshpress/laundromat-backend/internal/middleware"
	"github.com/freshpress/laundromat-backend/internal/models"
	"github.com/freshpress/laundromat-backend/internal/services"
)

// WalletService is the slice of the wallet service the handlers consume.
type WalletService interface {
	TopUp(ctx context.Context, userID string, amount decimal.Decimal, method string) (services.TopUpIntent, error)
	Settle(ctx context.Context, gatewayTxID string) (services.SettleResult, error)
	SettleWebhook(ctx context.Context, charge gateway.Charge) (services.SettleResult, error)
	Balance(ctx context.Context, userID string) (models.Wallet, error)
	History(ctx context.Context, userID string, page, limit int) (services.HistoryPage, error)
	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// SignatureVerifier checks a webhook's verif-hash header.
type SignatureVerifier interface {
	VerifySignature(header string) bool
}

type WalletHandler struct {
	svc         WalletService
	sig         SignatureVerifier
	frontendURL string
	log         *slog.Logger
}

func NewWalletHandler(svc WalletService, sig SignatureVerifier, frontendURL string, log *slog.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, sig: sig, frontendURL: frontendURL, log: log}
}

type topUpRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
}

func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "card"
	}

	intent, err := h.svc.TopUp(r.Context(), userID, req.Amount, req.PaymentMethod)
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, gateway.ErrUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "failed to initiate payment")
	case err != nil:
		h.log.Error("top-up", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "could not initiate top-up")
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"paymentLink": intent.PaymentLink,
			"reference":   intent.Reference,
		})
	}
}

// Verify handles the browser's return from hosted checkout. The gateway is
// always re-queried by transaction id; the browser only ever sees a coarse
// status flag on the wallet page.
func (h *WalletHandler) Verify(w http.ResponseWriter, r *http.Request) {
	gatewayTxID := r.URL.Query().Get("transaction_id")
	if gatewayTxID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing transaction_id")
		return
	}

	flag := "error"
	res, err := h.svc.Settle(r.Context(), gatewayTxID)
	if err != nil {
		h.log.Warn("redirect verification", "transaction_id", gatewayTxID, "err", err)
	} else {
		switch res.Status {
		case services.SettleCredited:
			flag = "success"
		case services.SettleAlready:
			flag = "already"
		case services.SettleFailed:
			flag = "failed"
		}
	}
	http.Redirect(w, r, h.frontendURL+"/wallet?verified="+flag, http.StatusFound)
}

// Webhook handles server-to-server charge notifications. The body is read
// raw so the signature check applies to the exact delivered bytes; a bad
// signature is rejected before anything is parsed or looked up.
func (h *WalletHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !h.sig.VerifySignature(r.Header.Get("verif-hash")) {
		metrics.WebhookRejected.Inc()
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ev, err := gateway.ParseWebhook(raw)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	charge, ok := ev.Charge()
	if !ok {
		// Not a charge event; acknowledge and ignore.
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = h.svc.SettleWebhook(r.Context(), charge)
	switch {
	case errors.Is(err, services.ErrUnknownTransaction):
		httpx.WriteError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, services.ErrChargePending):
		// No terminal status yet; the gateway will redeliver.
		w.WriteHeader(http.StatusOK)
	case err != nil:
		h.log.Error("webhook settlement", "reference", charge.Reference, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "something went wrong")
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		h.log.Error("wallet balance", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to retrieve wallet balance")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": wallet})
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	hist, err := h.svc.History(r.Context(), userID, page, limit)
	if err != nil {
		h.log.Error("wallet history", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to retrieve transactions")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   hist.Transactions,
		"meta": map[string]any{
			"total":   hist.Total,
			"page":    hist.Page,
			"limit":   hist.Limit,
			"hasMore": hist.HasMore,
		},
	})
}

func (h *WalletHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notes, err := h.svc.Notifications(r.Context(), userID)
	if err != nil {
		h.log.Error("notifications", "user_id", userID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to retrieve notifications")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": notes})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

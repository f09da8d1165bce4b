package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshpress/laundromat-backend/internal/cache"
	"github.com/freshpress/laundromat-backend/internal/gateway"
	"github.com/freshpress/laundromat-backend/internal/metrics"
	"github.com/freshpress/laundromat-backend/internal/models"
	"github.com/freshpress/laundromat-backend/internal/money"
	repo "github.com/freshpress/laundromat-backend/internal/repository"
	"github.com/freshpress/laundromat-backend/internal/worker"
)

// Gateway is the slice of the payment provider the wallet needs.
type Gateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (string, error)
	Verify(ctx context.Context, gatewayTxID string) (gateway.Charge, error)
}

type SettleStatus string

const (
	// SettleCredited: this call performed the one-and-only balance credit.
	SettleCredited SettleStatus = "credited"
	// SettleAlready: another call settled first; reported as success.
	SettleAlready SettleStatus = "already"
	// SettleFailed: the gateway reported a terminal non-success status.
	SettleFailed SettleStatus = "failed"
)

type SettleResult struct {
	Status      SettleStatus
	Transaction models.Transaction
}

type TopUpIntent struct {
	PaymentLink string `json:"paymentLink"`
	Reference   string `json:"reference"`
}

type HistoryPage struct {
	Transactions []models.Transaction `json:"data"`
	Total        int64                `json:"total"`
	Page         int                  `json:"page"`
	Limit        int                  `json:"limit"`
	HasMore      bool                 `json:"hasMore"`
}

type WalletConfig struct {
	Currency    string
	MinTopUp    int64
	RedirectURL string
}

// WalletService owns top-up initiation and the idempotent settlement path
// shared by the redirect-verify and webhook endpoints.
type WalletService struct {
	users   repo.Users
	wallets repo.Wallets
	txns    repo.Transactions
	notes   repo.Notifications
	gw      Gateway
	cache   *cache.Cache
	wp      *worker.Pool
	cfg     WalletConfig
	log     *slog.Logger
}

func NewWalletService(
	users repo.Users,
	wallets repo.Wallets,
	txns repo.Transactions,
	notes repo.Notifications,
	gw Gateway,
	c *cache.Cache,
	wp *worker.Pool,
	cfg WalletConfig,
	log *slog.Logger,
) *WalletService {
	return &WalletService{
		users:   users,
		wallets: wallets,
		txns:    txns,
		notes:   notes,
		gw:      gw,
		cache:   c,
		wp:      wp,
		cfg:     cfg,
		log:     log,
	}
}

// TopUp validates the requested amount, writes the pending ledger entry with
// balance snapshots, and obtains a hosted payment link. A gateway failure
// marks the fresh entry failed so no orphaned pending row survives.
func (s *WalletService) TopUp(ctx context.Context, userID string, amount decimal.Decimal, method string) (TopUpIntent, error) {
	kobo := money.ToKobo(amount)
	if kobo < s.cfg.MinTopUp {
		return TopUpIntent{}, fmt.Errorf("%w: minimum top-up is %s", ErrInvalidAmount, money.FormatNaira(s.cfg.MinTopUp))
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return TopUpIntent{}, ErrUserNotFound
	}
	if err != nil {
		return TopUpIntent{}, fmt.Errorf("load user: %w", err)
	}

	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return TopUpIntent{}, fmt.Errorf("load wallet: %w", err)
	}

	ref := "TOPUP-" + uuid.NewString()
	txn := models.Transaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		Reference:       ref,
		Amount:          kobo,
		Currency:        s.cfg.Currency,
		Type:            models.TxnTopUp,
		Status:          models.TxnPending,
		Method:          method,
		PreviousBalance: w.Balance,
		NewBalance:      w.Balance,
		Description:     fmt.Sprintf("Wallet top-up via %s", method),
	}
	if _, err := s.txns.Create(ctx, txn); err != nil {
		return TopUpIntent{}, fmt.Errorf("create pending transaction: %w", err)
	}
	metrics.TopupsInitiated.Inc()

	link, err := s.gw.Initiate(ctx, gateway.InitiateRequest{
		Reference:   ref,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		RedirectURL: s.cfg.RedirectURL,
		Customer:    gateway.Customer{Email: user.Email, Name: user.FullName},
		Title:       "Wallet Top-Up",
		Description: fmt.Sprintf("Top up of %s", money.FormatNaira(kobo)),
	})
	if err != nil {
		if ferr := s.txns.MarkFailed(ctx, ref, ""); ferr != nil {
			s.log.Error("mark orphaned top-up failed", "reference", ref, "err", ferr)
		}
		return TopUpIntent{}, fmt.Errorf("initiate payment: %w", err)
	}

	s.log.Info("top-up initiated", "user_id", userID, "reference", ref, "amount", kobo)
	return TopUpIntent{PaymentLink: link, Reference: ref}, nil
}

// Settle is the redirect-path entry point. The caller supplies only the
// gateway transaction id; the status is fetched from the gateway, never taken
// from the redirect's query parameters. Verify failures mutate nothing.
func (s *WalletService) Settle(ctx context.Context, gatewayTxID string) (SettleResult, error) {
	charge, err := s.gw.Verify(ctx, gatewayTxID)
	if err != nil {
		return SettleResult{}, fmt.Errorf("verify charge %s: %w", gatewayTxID, err)
	}
	return s.apply(ctx, charge)
}

// SettleWebhook is the webhook-path entry point. The handler has already
// validated the payload signature, so the charge inside it may be trusted;
// the ledger entry is still resolved by reference like any other settlement.
func (s *WalletService) SettleWebhook(ctx context.Context, charge gateway.Charge) (SettleResult, error) {
	return s.apply(ctx, charge)
}

func (s *WalletService) apply(ctx context.Context, charge gateway.Charge) (SettleResult, error) {
	txn, err := s.txns.GetByReference(ctx, charge.Reference)
	if errors.Is(err, repo.ErrNotFound) {
		return SettleResult{}, fmt.Errorf("%w: %s", ErrUnknownTransaction, charge.Reference)
	}
	if err != nil {
		return SettleResult{}, fmt.Errorf("load transaction %s: %w", charge.Reference, err)
	}

	// At-most-once guard: both delivery paths may fire for the same payment.
	switch txn.Status {
	case models.TxnCompleted:
		metrics.Settlements.WithLabelValues("already").Inc()
		return SettleResult{Status: SettleAlready, Transaction: txn}, nil
	case models.TxnFailed:
		return SettleResult{Status: SettleFailed, Transaction: txn}, nil
	}

	if txn.GatewayTxID != nil && charge.GatewayTxID != "" && *txn.GatewayTxID != charge.GatewayTxID {
		return SettleResult{}, fmt.Errorf("%w: reference %s already bound to %s, got %s",
			ErrGatewayConflict, txn.Reference, *txn.GatewayTxID, charge.GatewayTxID)
	}

	switch charge.Status {
	case gateway.StatusSuccessful:
		return s.credit(ctx, txn, charge)
	case gateway.StatusPending:
		metrics.Settlements.WithLabelValues("pending").Inc()
		return SettleResult{}, fmt.Errorf("%w: %s", ErrChargePending, txn.Reference)
	default:
		if err := s.txns.MarkFailed(ctx, txn.Reference, charge.GatewayTxID); err != nil {
			return SettleResult{}, fmt.Errorf("mark failed %s: %w", txn.Reference, err)
		}
		metrics.Settlements.WithLabelValues("failed").Inc()
		s.log.Info("top-up failed at gateway", "reference", txn.Reference, "gateway_status", charge.Status)
		txn.Status = models.TxnFailed
		return SettleResult{Status: SettleFailed, Transaction: txn}, nil
	}
}

func (s *WalletService) credit(ctx context.Context, txn models.Transaction, charge gateway.Charge) (SettleResult, error) {
	// The gateway's verified amount is authoritative; a mismatch against the
	// requested amount is an anomaly, not grounds to reject the credit.
	verified := money.ToKobo(charge.Amount)
	if verified != txn.Amount {
		metrics.AmountMismatches.Inc()
		s.log.Warn("settled amount differs from requested",
			"reference", txn.Reference, "requested", txn.Amount, "verified", verified)
	}
	if charge.Currency != "" && charge.Currency != txn.Currency {
		s.log.Warn("settled currency differs from requested",
			"reference", txn.Reference, "requested", txn.Currency, "verified", charge.Currency)
	}

	outcome, err := s.txns.Settle(ctx, txn.Reference, charge.GatewayTxID, verified)
	if err != nil {
		return SettleResult{}, fmt.Errorf("settle %s: %w", txn.Reference, err)
	}
	if outcome.AlreadyFinal {
		// Lost the race; the winner's state stands.
		if outcome.Transaction.Status == models.TxnFailed {
			return SettleResult{Status: SettleFailed, Transaction: outcome.Transaction}, nil
		}
		metrics.Settlements.WithLabelValues("already").Inc()
		return SettleResult{Status: SettleAlready, Transaction: outcome.Transaction}, nil
	}

	settled := outcome.Transaction
	metrics.Settlements.WithLabelValues("credited").Inc()
	s.log.Info("wallet credited",
		"user_id", settled.UserID, "reference", settled.Reference,
		"amount", settled.Amount, "new_balance", settled.NewBalance)

	s.dispatch(func() { s.afterCredit(settled) })
	return SettleResult{Status: SettleCredited, Transaction: settled}, nil
}

func (s *WalletService) dispatch(f func()) {
	if s.wp != nil {
		s.wp.Submit(f)
		return
	}
	f()
}

// afterCredit records the user notification and drops stale cache entries.
// It runs outside the atomic settlement unit; failures here are logged, not
// surfaced, since the credit already committed.
func (s *WalletService) afterCredit(txn models.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := models.Notification{
		ID:      uuid.NewString(),
		UserID:  txn.UserID,
		Message: fmt.Sprintf("Your wallet was credited with %s", money.FormatNaira(txn.Amount)),
		Kind:    "wallet",
		Link:    "/wallet",
	}
	if err := s.notes.Create(ctx, n); err != nil {
		s.log.Error("record credit notification", "reference", txn.Reference, "err", err)
	}
	s.invalidate(ctx, txn.UserID)
}

func (s *WalletService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.WalletKey(userID)); err != nil {
		s.log.Error("invalidate wallet cache", "user_id", userID, "err", err)
	}
	if err := s.cache.DeletePattern(ctx, cache.TransactionsPattern(userID)); err != nil {
		s.log.Error("invalidate history cache", "user_id", userID, "err", err)
	}
}

// Balance returns the wallet, read through the cache when one is configured.
func (s *WalletService) Balance(ctx context.Context, userID string) (models.Wallet, error) {
	key := cache.WalletKey(userID)
	var w models.Wallet
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &w); err == nil && ok {
			return w, nil
		}
	}
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Wallet{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, w, time.Minute); err != nil {
			s.log.Error("cache wallet", "user_id", userID, "err", err)
		}
	}
	return w, nil
}

func (s *WalletService) History(ctx context.Context, userID string, page, limit int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	key := cache.TransactionsKey(userID, page, limit)
	var out HistoryPage
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); err == nil && ok {
			return out, nil
		}
	}

	offset := (page - 1) * limit
	txns, err := s.txns.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return HistoryPage{}, err
	}
	total, err := s.txns.CountByUser(ctx, userID)
	if err != nil {
		return HistoryPage{}, err
	}
	out = HistoryPage{
		Transactions: txns,
		Total:        total,
		Page:         page,
		Limit:        limit,
		HasMore:      total > int64(offset+len(txns)),
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, 30*time.Second); err != nil {
			s.log.Error("cache history", "user_id", userID, "err", err)
		}
	}
	return out, nil
}

func (s *WalletService) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.notes.ListByUser(ctx, userID, 50)
}

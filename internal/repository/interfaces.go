package repository

import (
	"context"
	"errors"

	"github.com/freshpress/laundromat-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type Wallets interface {
	GetOrCreate(ctx context.Context, userID string) (models.Wallet, error)
	Get(ctx context.Context, userID string) (models.Wallet, error)
}

// SettleOutcome reports what an atomic settlement attempt did. When the row
// was no longer pending, AlreadyFinal is true and Transaction carries the
// state the winner left behind.
type SettleOutcome struct {
	AlreadyFinal bool
	Transaction  models.Transaction
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
	CountByUser(ctx context.Context, userID string) (int64, error)

	// Settle credits amount to the owner's wallet and completes the pending
	// transaction in one atomic unit. The amount is the gateway-verified one
	// and may differ from the amount recorded at initiation. Losers of a
	// concurrent settlement race get AlreadyFinal instead of an error.
	Settle(ctx context.Context, reference, gatewayTxID string, amount int64) (SettleOutcome, error)

	// MarkFailed moves a pending transaction to failed. Terminal rows are
	// left untouched.
	MarkFailed(ctx context.Context, reference, gatewayTxID string) error
}

type Notifications interface {
	Create(ctx context.Context, n models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

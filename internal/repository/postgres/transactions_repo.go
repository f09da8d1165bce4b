package postgres

import (
	"context"
	"errors"

	"github.com/freshpress/laundromat-backend/internal/models"
	repo "github.com/freshpress/laundromat-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnColumns = `id, user_id, reference, amount, currency, type, status, method,
	gateway_tx_id, previous_balance, new_balance, description, created_at, updated_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Reference, &t.Amount, &t.Currency, &t.Type, &t.Status,
		&t.Method, &t.GatewayTxID, &t.PreviousBalance, &t.NewBalance, &t.Description,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repo.ErrNotFound
	}
	return t, err
}

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return scanTxn(r.pool.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, reference, amount, currency, type, status, method,
			gateway_tx_id, previous_balance, new_balance, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+txnColumns,
		t.ID, t.UserID, t.Reference, t.Amount, t.Currency, t.Type, t.Status, t.Method,
		t.GatewayTxID, t.PreviousBalance, t.NewBalance, t.Description,
	))
}

func (r *transactionsRepo) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE reference=$1`, reference))
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions
		  WHERE user_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// Settle runs the atomic settlement unit: lock the ledger row, bail out if a
// concurrent attempt already finalized it, credit the wallet, and record the
// balance snapshots on the completed transaction. Serializable isolation plus
// the row lock make the loser of a redirect/webhook race a clean no-op.
func (r *transactionsRepo) Settle(ctx context.Context, reference, gatewayTxID string, amount int64) (repo.SettleOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite})
	if err != nil {
		return repo.SettleOutcome{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTxn(tx.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE reference=$1 FOR UPDATE`, reference))
	if err != nil {
		return repo.SettleOutcome{}, err
	}
	if t.Final() {
		return repo.SettleOutcome{AlreadyFinal: true, Transaction: t}, tx.Commit(ctx)
	}

	var newBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE wallets SET balance = balance + $2, updated_at = now()
		  WHERE user_id=$1 RETURNING balance`,
		t.UserID, amount,
	).Scan(&newBalance)
	if err != nil {
		return repo.SettleOutcome{}, err
	}

	t, err = scanTxn(tx.QueryRow(ctx,
		`UPDATE transactions
		    SET status=$2, amount=$3, gateway_tx_id=$4, previous_balance=$5, new_balance=$6, updated_at=now()
		  WHERE id=$1
		  RETURNING `+txnColumns,
		t.ID, models.TxnCompleted, amount, gatewayTxID, newBalance-amount, newBalance,
	))
	if err != nil {
		return repo.SettleOutcome{}, err
	}
	return repo.SettleOutcome{Transaction: t}, tx.Commit(ctx)
}

func (r *transactionsRepo) MarkFailed(ctx context.Context, reference, gatewayTxID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions
		    SET status=$2, gateway_tx_id=COALESCE(NULLIF($3,''), gateway_tx_id), updated_at=now()
		  WHERE reference=$1 AND status=$4`,
		reference, models.TxnFailed, gatewayTxID, models.TxnPending,
	)
	return err
}

package models

import "time"

type TransactionType string

const (
	TxnTopUp      TransactionType = "topup"
	TxnPayment    TransactionType = "payment"
	TxnRefund     TransactionType = "refund"
	TxnWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction is one ledger entry. Reference is the caller-generated
// idempotency key shared with the payment gateway as tx_ref; it is unique and
// immutable. Status moves pending->completed or pending->failed exactly once.
type Transaction struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Reference string            `json:"reference"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
	Method    string            `json:"method"`
	// External id reported by the gateway, attached once known.
	GatewayTxID     *string   `json:"gateway_tx_id,omitempty"`
	PreviousBalance int64     `json:"previous_balance"`
	NewBalance      int64     `json:"new_balance"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Final reports whether the transaction reached a terminal status.
func (t Transaction) Final() bool {
	return t.Status == TxnCompleted || t.Status == TxnFailed
}

package services

import "errors"

var (
	// ErrInvalidAmount rejects top-ups below the configured minimum.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUnknownTransaction means no ledger entry matches the gateway's
	// tx_ref; settlement never creates entries from bare gateway reports.
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrChargePending means the gateway has no terminal status yet; nothing
	// was mutated and the caller may retry.
	ErrChargePending = errors.New("charge not yet terminal")
	// ErrGatewayConflict means two different gateway transaction ids were
	// reported for the same reference.
	ErrGatewayConflict = errors.New("conflicting gateway transaction id")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

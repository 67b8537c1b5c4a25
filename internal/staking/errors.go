package staking

import "errors"

// Sentinel errors shared by the ledger and mapped to HTTP statuses at the
// handler boundary.
var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrWalletNotFound     = errors.New("no wallet registered for user")
	ErrRecordNotFound     = errors.New("staking record not found")
	ErrNotActive          = errors.New("staking record is not active")
	ErrDuplicateSignature = errors.New("duplicate transaction signature")
	ErrAddressTaken       = errors.New("address already registered to another wallet")
)

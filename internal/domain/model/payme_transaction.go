package model

import "time"

// PaymeState is Payme's integer transaction state machine.
type PaymeState int

const (
	PaymeStateCreated         PaymeState = 1  // created, awaiting payment
	PaymeStatePerformed       PaymeState = 2  // performed (money captured)
	PaymeStateCancelled       PaymeState = -1 // cancelled before perform
	PaymeStateCancelledRefund PaymeState = -2 // cancelled after perform (refund)
)

// PaymeTransaction persists Payme's per-transaction protocol state so that
// repeated CheckTransaction/PerformTransaction calls are answerable from
// stored state without re-executing side effects. Times are Unix
// milliseconds, as Payme's wire protocol requires.
type PaymeTransaction struct {
	PaymeID      string // Payme-assigned transaction id (params.id)
	MerchantTxID string // our transaction identifier (account.subscription_id)
	UserID       string
	Amount       int64 // tiyin (minor units)
	State        PaymeState
	CreateTime   int64
	PerformTime  int64
	CancelTime   int64
	Reason       *int // Payme cancel reason code, stored but not interpreted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Cancellable reports whether CancelTransaction may still flip the state.
func (t *PaymeTransaction) Cancellable() bool {
	return t.State == PaymeStateCreated || t.State == PaymeStatePerformed
}

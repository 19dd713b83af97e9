package repository

import (
	"context"
	"time"

	"qarzdaftari/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

// ClaimResult reports the outcome of an atomic claim on an external
// transaction id. When IsNew is false, Existing holds the row written by the
// first delivery and the caller must not credit again.
type ClaimResult struct {
	IsNew    bool
	Existing *model.PaymentTransaction
}

// PaymentRepository stores the append-only payment audit trail and doubles
// as the idempotency ledger via ClaimExternal.
type PaymentRepository interface {
	// ClaimExternal atomically inserts p keyed by (provider, external_id).
	// A concurrent or repeated delivery of the same external id observes
	// IsNew=false with the previously inserted row. Must be atomic with
	// respect to concurrent callers for the same external id.
	ClaimExternal(ctx context.Context, tx Tx, p *model.PaymentTransaction) (ClaimResult, error)

	FindByExternalID(ctx context.Context, tx Tx, provider model.ProviderName, externalID string) (*model.PaymentTransaction, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.PaymentTransaction, error)
}

// -----------------------------
// Subscriptions (append-only history)
// -----------------------------

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
}

// -----------------------------
// Payme protocol state
// -----------------------------

type PaymeTransactionRepository interface {
	Save(ctx context.Context, tx Tx, t *model.PaymeTransaction) error
	FindByPaymeID(ctx context.Context, tx Tx, paymeID string) (*model.PaymeTransaction, error)
	ListByPeriod(ctx context.Context, tx Tx, from, to time.Time) ([]*model.PaymeTransaction, error)
}

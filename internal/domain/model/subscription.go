package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// SubscriptionWindow is the fixed entitlement window applied on every
// successful reconciliation. It is 30 days regardless of the purchased
// billing cycle; see the pending test in usecase for the proportional
// variant, which is intentionally not applied yet.
const SubscriptionWindow = 30 * 24 * time.Hour

// Subscription is one purchased plan-period. Rows are append-only history;
// the "current plan" is the denormalized cache on the user profile, not a
// query over this table.
type Subscription struct {
	ID                   string // UUID
	UserID               string
	Plan                 PlanType
	Status               SubscriptionStatus
	Amount               int64
	Currency             string
	Provider             ProviderName
	PaymentTransactionID string
	StartsAt             time.Time
	ExpiresAt            time.Time
	CreatedAt            time.Time
}

// NewSubscription builds the subscription row for a completed payment.
func NewSubscription(userID string, plan PlanType, provider ProviderName, amount int64, paymentID string, now time.Time) *Subscription {
	return &Subscription{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Plan:                 plan,
		Status:               SubscriptionStatusActive,
		Amount:               amount,
		Currency:             "UZS",
		Provider:             provider,
		PaymentTransactionID: paymentID,
		StartsAt:             now,
		ExpiresAt:            now.Add(SubscriptionWindow),
		CreatedAt:            now,
	}
}

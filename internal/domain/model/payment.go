package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type ProviderName string

const (
	ProviderClick ProviderName = "click"
	ProviderPayme ProviderName = "payme"
	ProviderUzum  ProviderName = "uzum"
)

// PaymentTransaction is the append-only audit record of one external payment
// attempt. (provider, external_id) is the idempotency key: at most one row,
// and therefore at most one subscription credit, exists per external id.
type PaymentTransaction struct {
	ID           string // ULID
	UserID       string
	Provider     ProviderName
	Amount       int64 // UZS, major units
	Status       PaymentStatus
	ExternalID   string // provider-assigned transaction id
	ExternalData []byte // raw provider payload retained for audit (JSONB)
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// NewPaymentID returns a sortable unique id for a payment row.
func NewPaymentID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

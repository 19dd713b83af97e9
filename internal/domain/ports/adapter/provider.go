package adapter

import (
	"net/http"

	"qarzdaftari/internal/domain/model"
)

// PaymentProvider is the capability each gateway adapter exposes to the rest
// of the system. Wire-format quirks (numeric action codes, JSON-RPC methods,
// single-phase notify) stay inside the adapter; the checkout and
// reconciliation layers see only this surface.
type PaymentProvider interface {
	Name() model.ProviderName
	// PaymentURL builds the outbound redirect target embedding the
	// transaction identifier. amount is in UZS major units; any minor-unit
	// conversion a provider needs happens inside its adapter.
	PaymentURL(txid model.TransactionID, amount int64) string
	// Webhook handles the provider's inbound callback, driving signature
	// verification, the provider state machine, and reconciliation.
	Webhook() http.HandlerFunc
}

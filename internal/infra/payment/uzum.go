package payment

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/config"
	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/adapter"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/infra/metrics"
	"qarzdaftari/internal/usecase"
)

// Uzum error codes.
const (
	uzumErrValidation = -1
	uzumErrUserNone   = -5
	uzumErrSystem     = -9
)

const uzumStatusCompleted = "completed"

// Compile-time check
var _ adapter.PaymentProvider = (*Uzum)(nil)

// Uzum implements the Uzum (Apelsin) single-phase notify protocol: one
// callback carrying the final status, gated by a SHA-256 keyed signature.
// There is no separate prepare step and no cancel path.
type Uzum struct {
	cfg       config.UzumConfig
	reconcile usecase.ReconcileUseCase
	locker    Locker
	log       *zerolog.Logger
}

func NewUzum(cfg config.UzumConfig, reconcile usecase.ReconcileUseCase, locker Locker, logger *zerolog.Logger) *Uzum {
	l := logger.With().Str("component", "UzumAdapter").Logger()
	return &Uzum{cfg: cfg, reconcile: reconcile, locker: locker, log: &l}
}

func (u *Uzum) Name() model.ProviderName { return model.ProviderUzum }

// PaymentURL builds the Uzum redirect; the transaction identifier rides in
// order_id.
func (u *Uzum) PaymentURL(txid model.TransactionID, amount int64) string {
	base := u.cfg.BaseURL
	if base == "" {
		base = "https://www.apelsin.uz/open-service"
	}
	v := url.Values{}
	v.Set("serviceId", u.cfg.ServiceID)
	v.Set("order_id", txid.String())
	v.Set("amount", strconv.FormatInt(amount, 10))
	return base + "?" + v.Encode()
}

// uzumNotify keeps amount as json.Number: the signature covers the amount
// exactly as the provider formatted it.
type uzumNotify struct {
	Status        string      `json:"status"`
	OrderID       string      `json:"order_id"`
	Amount        json.Number `json:"amount"`
	TransactionID string      `json:"transaction_id"`
	Signature     string      `json:"signature"`
}

type uzumResponse struct {
	Status       string `json:"status"`
	ErrorCode    int    `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (u *Uzum) Webhook() http.HandlerFunc { return u.handle }

func (u *Uzum) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncWebhook("uzum", "client_error")
		u.fail(w, uzumErrValidation, "bad request")
		return
	}

	var req uzumNotify
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		metrics.IncWebhook("uzum", "client_error")
		u.fail(w, uzumErrValidation, "bad request")
		return
	}

	// Signature gates everything; no side effect may run before this.
	if !u.verifySignature(req) {
		metrics.IncSignatureFailure("uzum")
		metrics.IncWebhook("uzum", "client_error")
		u.fail(w, uzumErrValidation, "signature mismatch")
		return
	}

	// Single-phase: only the terminal success status triggers reconciliation.
	// Anything else is acknowledged without mutation.
	if req.Status != uzumStatusCompleted {
		metrics.IncWebhook("uzum", "ok")
		writeJSON(w, http.StatusOK, uzumResponse{Status: "success"})
		return
	}

	if u.locker != nil {
		token, err := u.locker.TryLock(r.Context(), "webhook:uzum:"+req.TransactionID)
		if err != nil {
			metrics.IncWebhook("uzum", "system_error")
			u.fail(w, uzumErrSystem, "system error")
			return
		}
		defer func() { _ = u.locker.Unlock(r.Context(), "webhook:uzum:"+req.TransactionID, token) }()
	}

	amount, err := majorUnits(req.Amount)
	if err != nil {
		metrics.IncWebhook("uzum", "client_error")
		u.fail(w, uzumErrValidation, "invalid amount")
		return
	}

	if _, _, err := u.reconcile.Complete(r.Context(), model.ProviderUzum, req.TransactionID, req.OrderID, amount, body); err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedIdentifier), errors.Is(err, domain.ErrUserNotFound):
			metrics.IncWebhook("uzum", "client_error")
			u.fail(w, uzumErrUserNone, "unknown order")
		default:
			logging.With(r.Context(), u.log).Error().Err(err).Str("transaction_id", req.TransactionID).Msg("notify failed")
			metrics.IncWebhook("uzum", "system_error")
			u.fail(w, uzumErrSystem, "system error")
		}
		return
	}

	metrics.IncWebhook("uzum", "ok")
	writeJSON(w, http.StatusOK, uzumResponse{Status: "success"})
}

// verifySignature recomputes the SHA-256 digest over the ordered
// concatenation Uzum signs and compares it with the signature field.
func (u *Uzum) verifySignature(req uzumNotify) bool {
	raw := req.TransactionID +
		u.cfg.ServiceID +
		u.cfg.SecretKey +
		req.OrderID +
		req.Amount.String() +
		req.Status
	sum := sha256.Sum256([]byte(raw))
	return strings.EqualFold(hex.EncodeToString(sum[:]), req.Signature)
}

func (u *Uzum) fail(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, http.StatusOK, uzumResponse{Status: "error", ErrorCode: code, ErrorMessage: msg})
}

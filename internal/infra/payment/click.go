package payment

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/config"
	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/adapter"
	"qarzdaftari/internal/domain/ports/repository"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/infra/metrics"
	"qarzdaftari/internal/usecase"
)

// Click protocol error codes.
const (
	clickOK             = 0
	clickErrSignCheck   = -1
	clickErrActionNone  = -3
	clickErrAlreadyPaid = -4
	clickErrUserNone    = -5
	clickErrBadRequest  = -8
	clickErrSystem      = -9
)

// Click action codes carried in the numeric `action` field.
const (
	clickActionPrepare  = "0"
	clickActionComplete = "1"
)

// Compile-time check
var _ adapter.PaymentProvider = (*Click)(nil)

// Click implements the Click SHOP-API callback protocol: a single webhook
// with numeric action dispatch (0=prepare, 1=complete) and an MD5 keyed
// signature over the ordered request fields.
type Click struct {
	cfg       config.ClickConfig
	users     repository.UserRepository
	reconcile usecase.ReconcileUseCase
	locker    Locker
	log       *zerolog.Logger
}

func NewClick(cfg config.ClickConfig, users repository.UserRepository, reconcile usecase.ReconcileUseCase, locker Locker, logger *zerolog.Logger) *Click {
	l := logger.With().Str("component", "ClickAdapter").Logger()
	return &Click{cfg: cfg, users: users, reconcile: reconcile, locker: locker, log: &l}
}

func (c *Click) Name() model.ProviderName { return model.ProviderClick }

// PaymentURL builds the my.click.uz redirect. Click round-trips the
// transaction identifier as merchant_trans_id via transaction_param.
func (c *Click) PaymentURL(txid model.TransactionID, amount int64) string {
	v := url.Values{}
	v.Set("service_id", c.cfg.ServiceID)
	v.Set("merchant_id", c.cfg.MerchantID)
	v.Set("amount", strconv.FormatInt(amount, 10))
	v.Set("transaction_param", txid.String())
	if c.cfg.ReturnURL != "" {
		v.Set("return_url", c.cfg.ReturnURL)
	}
	return "https://my.click.uz/services/pay?" + v.Encode()
}

// clickRequest keeps numeric fields as json.Number: the signature is
// computed over the amount exactly as Click formatted it, so no
// normalization is permitted before verification.
type clickRequest struct {
	ClickTransID  json.Number `json:"click_trans_id"`
	ServiceID     json.Number `json:"service_id"`
	ClickPaydocID json.Number `json:"click_paydoc_id"`

	MerchantTransID   string      `json:"merchant_trans_id"`
	MerchantPrepareID json.Number `json:"merchant_prepare_id"`

	Amount     json.Number `json:"amount"`
	Action     json.Number `json:"action"`
	SignTime   string      `json:"sign_time"`
	SignString string      `json:"sign_string"`
}

// clickResponse always echoes the request's identifying and signature fields
// verbatim, even on errors, per Click's spec.
type clickResponse struct {
	ClickTransID      json.Number `json:"click_trans_id"`
	MerchantTransID   string      `json:"merchant_trans_id"`
	MerchantPrepareID int64       `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID int64       `json:"merchant_confirm_id,omitempty"`
	Amount            json.Number `json:"amount"`
	Action            json.Number `json:"action"`
	Error             int         `json:"error"`
	ErrorNote         string      `json:"error_note"`
	SignTime          string      `json:"sign_time"`
	SignString        string      `json:"sign_string"`
}

func (c *Click) Webhook() http.HandlerFunc { return c.handle }

func (c *Click) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		c.respond(w, clickRequest{}, 0, clickErrBadRequest, "Bad request")
		return
	}

	var req clickRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrBadRequest, "Bad request")
		return
	}

	// Signature gates everything; no side effect may run before this.
	if !c.verifySignature(req) {
		metrics.IncSignatureFailure("click")
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrSignCheck, "SIGN CHECK FAILED")
		return
	}

	switch req.Action.String() {
	case clickActionPrepare:
		c.prepare(w, r, req)
	case clickActionComplete:
		c.complete(w, r, req, body)
	default:
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrActionNone, "Action not found")
	}
}

// verifySignature recomputes the MD5 digest over the ordered concatenation
// Click signs and compares it with sign_string.
func (c *Click) verifySignature(req clickRequest) bool {
	raw := req.ClickTransID.String() +
		c.cfg.ServiceID +
		c.cfg.SecretKey +
		req.MerchantTransID +
		req.Amount.String() +
		req.Action.String() +
		req.SignTime
	sum := md5.Sum([]byte(raw))
	return strings.EqualFold(hex.EncodeToString(sum[:]), req.SignString)
}

// prepare answers "can this transaction proceed". It is a pure feasibility
// check and creates no persistent record.
func (c *Click) prepare(w http.ResponseWriter, r *http.Request, req clickRequest) {
	txid, err := model.ParseTransactionID(req.MerchantTransID)
	if err != nil {
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrUserNone, "User not found")
		return
	}
	if _, err := c.users.FindByID(r.Context(), repository.NoTX, txid.UserID); err != nil {
		code, outcome := clickErrUserNone, "client_error"
		if !errors.Is(err, domain.ErrUserNotFound) {
			code, outcome = clickErrSystem, "system_error"
		}
		metrics.IncWebhook("click", outcome)
		c.respond(w, req, 0, code, "User not found")
		return
	}
	if f, err := req.Amount.Float64(); err != nil || f <= 0 {
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrBadRequest, "Invalid amount")
		return
	}

	metrics.IncWebhook("click", "ok")
	c.respond(w, req, txid.CreatedAt.UnixMilli(), clickOK, "Success")
}

// complete is the irrevocable success path. The ledger claim inside the
// reconciler makes a retried complete answerable without re-crediting.
func (c *Click) complete(w http.ResponseWriter, r *http.Request, req clickRequest, body []byte) {
	extID := req.ClickTransID.String()

	if c.locker != nil {
		token, err := c.locker.TryLock(r.Context(), "webhook:click:"+extID)
		if err != nil {
			// Another delivery of this id is in flight; let Click retry.
			metrics.IncWebhook("click", "system_error")
			c.respond(w, req, 0, clickErrSystem, "System error")
			return
		}
		defer func() { _ = c.locker.Unlock(r.Context(), "webhook:click:"+extID, token) }()
	}

	amount, err := majorUnits(req.Amount)
	if err != nil {
		metrics.IncWebhook("click", "client_error")
		c.respond(w, req, 0, clickErrBadRequest, "Invalid amount")
		return
	}

	rec, _, err := c.reconcile.Complete(r.Context(), model.ProviderClick, extID, req.MerchantTransID, amount, body)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedIdentifier), errors.Is(err, domain.ErrUserNotFound):
			metrics.IncWebhook("click", "client_error")
			c.respond(w, req, 0, clickErrUserNone, "User not found")
		default:
			logging.With(r.Context(), c.log).Error().Err(err).Str("click_trans_id", extID).Msg("complete failed")
			metrics.IncWebhook("click", "system_error")
			c.respond(w, req, 0, clickErrSystem, "System error")
		}
		return
	}

	metrics.IncWebhook("click", "ok")
	resp := clickResponse{
		ClickTransID:      numOrZero(req.ClickTransID),
		MerchantTransID:   req.MerchantTransID,
		MerchantConfirmID: rec.CreatedAt.UnixMilli(),
		Amount:            numOrZero(req.Amount),
		Action:            numOrZero(req.Action),
		Error:             clickOK,
		ErrorNote:         "Success",
		SignTime:          req.SignTime,
		SignString:        req.SignString,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Click) respond(w http.ResponseWriter, req clickRequest, prepareID int64, code int, note string) {
	resp := clickResponse{
		ClickTransID:      numOrZero(req.ClickTransID),
		MerchantTransID:   req.MerchantTransID,
		MerchantPrepareID: prepareID,
		Amount:            numOrZero(req.Amount),
		Action:            numOrZero(req.Action),
		Error:             code,
		ErrorNote:         note,
		SignTime:          req.SignTime,
		SignString:        req.SignString,
	}
	writeJSON(w, http.StatusOK, resp)
}

// majorUnits parses a provider-formatted decimal amount into whole UZS.
func majorUnits(n json.Number) (int64, error) {
	f, err := n.Float64()
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid amount %q", n.String())
	}
	return int64(math.Round(f)), nil
}

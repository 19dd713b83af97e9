package payment

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

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

// Payme JSON-RPC error codes.
const (
	paymeErrAuth          = -32504
	paymeErrParse         = -32700
	paymeErrMethod        = -32601
	paymeErrSystem        = -32400
	paymeErrWrongAmount   = -31001
	paymeErrAccount       = -31050
	paymeErrTxNotFound    = -31003
	paymeErrCannotPerform = -31008
)

// Payme amounts are in tiyin; the protocol minimum is 100 tiyin (1 sum).
const paymeMinAmount = 100

// Compile-time check
var _ adapter.PaymentProvider = (*Payme)(nil)

// Payme implements the Paycom merchant API: a JSON-RPC 2.0 endpoint
// authenticated with HTTP Basic credentials and a persisted per-transaction
// state machine (1 created, 2 performed, -1/-2 cancelled).
type Payme struct {
	cfg       config.PaymeConfig
	users     repository.UserRepository
	txs       repository.PaymeTransactionRepository
	reconcile usecase.ReconcileUseCase
	locker    Locker
	log       *zerolog.Logger
}

func NewPayme(cfg config.PaymeConfig, users repository.UserRepository, txs repository.PaymeTransactionRepository, reconcile usecase.ReconcileUseCase, locker Locker, logger *zerolog.Logger) *Payme {
	l := logger.With().Str("component", "PaymeAdapter").Logger()
	return &Payme{cfg: cfg, users: users, txs: txs, reconcile: reconcile, locker: locker, log: &l}
}

func (p *Payme) Name() model.ProviderName { return model.ProviderPayme }

// PaymentURL builds the checkout.paycom.uz deep link: a base64 encoding of
// the semicolon-delimited parameter string. The major-to-minor unit
// conversion (×100) is Payme-specific and must not leak into other adapters.
func (p *Payme) PaymentURL(txid model.TransactionID, amount int64) string {
	params := fmt.Sprintf("m=%s;ac.subscription_id=%s;a=%d", p.cfg.MerchantID, txid.String(), amount*100)
	if p.cfg.ReturnURL != "" {
		params += ";c=" + p.cfg.ReturnURL
	}
	return "https://checkout.paycom.uz/" + base64.StdEncoding.EncodeToString([]byte(params))
}

type paymeRequest struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type paymeError struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type paymeResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  *paymeError `json:"error,omitempty"`
	ID     interface{} `json:"id"`
}

type paymeAccount struct {
	SubscriptionID string `json:"subscription_id"`
}

type paymeCheckPerformParams struct {
	Amount  int64        `json:"amount"`
	Account paymeAccount `json:"account"`
}

type paymeCreateParams struct {
	ID      string       `json:"id"`
	Time    int64        `json:"time"`
	Amount  int64        `json:"amount"`
	Account paymeAccount `json:"account"`
}

type paymeTxParams struct {
	ID     string `json:"id"`
	Reason *int   `json:"reason"`
}

type paymeStatementParams struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

func (p *Payme) Webhook() http.HandlerFunc { return p.handle }

func (p *Payme) handle(w http.ResponseWriter, r *http.Request) {
	// Credential check gates every method; no side effect may run before it.
	if !p.authorized(r) {
		metrics.IncSignatureFailure("payme")
		metrics.IncWebhook("payme", "client_error")
		p.reply(w, nil, nil, &paymeError{Code: paymeErrAuth, Message: "Unauthorized"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncWebhook("payme", "client_error")
		p.reply(w, nil, nil, &paymeError{Code: paymeErrParse, Message: "Parse error"})
		return
	}
	var req paymeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.IncWebhook("payme", "client_error")
		p.reply(w, nil, nil, &paymeError{Code: paymeErrParse, Message: "Parse error"})
		return
	}

	var result interface{}
	var rpcErr *paymeError
	switch req.Method {
	case "CheckPerformTransaction":
		result, rpcErr = p.checkPerform(r, req.Params)
	case "CreateTransaction":
		result, rpcErr = p.createTransaction(r, req.Params)
	case "PerformTransaction":
		result, rpcErr = p.performTransaction(r, req.Params, body)
	case "CancelTransaction":
		result, rpcErr = p.cancelTransaction(r, req.Params)
	case "CheckTransaction":
		result, rpcErr = p.checkTransaction(r, req.Params)
	case "GetStatement":
		result, rpcErr = p.getStatement(r, req.Params)
	default:
		rpcErr = &paymeError{Code: paymeErrMethod, Message: "Method not found"}
	}

	switch {
	case rpcErr == nil:
		metrics.IncWebhook("payme", "ok")
	case rpcErr.Code == paymeErrSystem:
		metrics.IncWebhook("payme", "system_error")
	default:
		metrics.IncWebhook("payme", "client_error")
	}
	p.reply(w, req.ID, result, rpcErr)
}

// authorized verifies Basic credentials against the static
// merchant-id/secret-key pair.
func (p *Payme) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(p.cfg.MerchantID)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(p.cfg.SecretKey)) == 1
	return userOK && passOK
}

func (p *Payme) reply(w http.ResponseWriter, id interface{}, result interface{}, rpcErr *paymeError) {
	writeJSON(w, http.StatusOK, paymeResponse{Result: result, Error: rpcErr, ID: id})
}

// validateAccount resolves account.subscription_id to a known user and plan.
func (p *Payme) validateAccount(r *http.Request, account paymeAccount) (*model.TransactionID, *paymeError) {
	txid, err := model.ParseTransactionID(account.SubscriptionID)
	if err != nil {
		return nil, &paymeError{Code: paymeErrAccount, Message: "Invalid subscription_id", Data: "subscription_id"}
	}
	if _, err := p.users.FindByID(r.Context(), repository.NoTX, txid.UserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, &paymeError{Code: paymeErrAccount, Message: "User not found", Data: "subscription_id"}
		}
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}
	return &txid, nil
}

// checkPerform answers "can this transaction proceed" and creates no record.
func (p *Payme) checkPerform(r *http.Request, raw json.RawMessage) (interface{}, *paymeError) {
	var params paymeCheckPerformParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}
	if params.Amount < paymeMinAmount {
		return nil, &paymeError{Code: paymeErrWrongAmount, Message: "Amount below minimum"}
	}
	if _, rpcErr := p.validateAccount(r, params.Account); rpcErr != nil {
		return nil, rpcErr
	}
	return map[string]interface{}{"allow": true}, nil
}

func (p *Payme) createTransaction(r *http.Request, raw json.RawMessage) (interface{}, *paymeError) {
	var params paymeCreateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}

	if existing, err := p.txs.FindByPaymeID(r.Context(), repository.NoTX, params.ID); err == nil {
		if existing.State != model.PaymeStateCreated {
			return nil, &paymeError{Code: paymeErrCannotPerform, Message: "Transaction is not pending"}
		}
		return createResult(existing), nil
	} else if !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}

	if params.Amount < paymeMinAmount {
		return nil, &paymeError{Code: paymeErrWrongAmount, Message: "Amount below minimum"}
	}
	txid, rpcErr := p.validateAccount(r, params.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}

	// Echo a server-observed creation time, not the one Payme sent.
	now := time.Now()
	t := &model.PaymeTransaction{
		PaymeID:      params.ID,
		MerchantTxID: params.Account.SubscriptionID,
		UserID:       txid.UserID,
		Amount:       params.Amount,
		State:        model.PaymeStateCreated,
		CreateTime:   now.UnixMilli(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.txs.Save(r.Context(), repository.NoTX, t); err != nil {
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}
	return createResult(t), nil
}

func (p *Payme) performTransaction(r *http.Request, raw json.RawMessage, payload []byte) (interface{}, *paymeError) {
	var params paymeTxParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}

	t, err := p.txs.FindByPaymeID(r.Context(), repository.NoTX, params.ID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, &paymeError{Code: paymeErrTxNotFound, Message: "Transaction not found"}
		}
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}

	switch t.State {
	case model.PaymeStatePerformed:
		// Retried perform is answered from stored state, without re-crediting.
		return performResult(t), nil
	case model.PaymeStateCancelled, model.PaymeStateCancelledRefund:
		return nil, &paymeError{Code: paymeErrCannotPerform, Message: "Transaction is cancelled"}
	}

	if p.locker != nil {
		token, err := p.locker.TryLock(r.Context(), "webhook:payme:"+t.PaymeID)
		if err != nil {
			return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
		}
		defer func() { _ = p.locker.Unlock(r.Context(), "webhook:payme:"+t.PaymeID, token) }()
	}

	// Payme amounts are tiyin; the ledger stores whole sums.
	if _, _, err := p.reconcile.Complete(r.Context(), model.ProviderPayme, t.PaymeID, t.MerchantTxID, t.Amount/100, payload); err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedIdentifier), errors.Is(err, domain.ErrUserNotFound):
			return nil, &paymeError{Code: paymeErrAccount, Message: "Invalid subscription_id", Data: "subscription_id"}
		default:
			logging.With(r.Context(), p.log).Error().Err(err).Str("payme_id", t.PaymeID).Msg("perform failed")
			return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
		}
	}

	t.State = model.PaymeStatePerformed
	t.PerformTime = time.Now().UnixMilli()
	t.UpdatedAt = time.Now()
	if err := p.txs.Save(r.Context(), repository.NoTX, t); err != nil {
		// The credit is committed; returning a system error makes Payme
		// retry, and the retry is answered idempotently above.
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}
	return performResult(t), nil
}

func (p *Payme) cancelTransaction(r *http.Request, raw json.RawMessage) (interface{}, *paymeError) {
	var params paymeTxParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}

	t, err := p.txs.FindByPaymeID(r.Context(), repository.NoTX, params.ID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, &paymeError{Code: paymeErrTxNotFound, Message: "Transaction not found"}
		}
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}

	if t.Cancellable() {
		if t.State == model.PaymeStatePerformed {
			t.State = model.PaymeStateCancelledRefund
		} else {
			t.State = model.PaymeStateCancelled
		}
		t.CancelTime = time.Now().UnixMilli()
		t.Reason = params.Reason
		t.UpdatedAt = time.Now()
		if err := p.txs.Save(r.Context(), repository.NoTX, t); err != nil {
			return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
		}
	}
	return map[string]interface{}{
		"transaction": t.PaymeID,
		"cancel_time": t.CancelTime,
		"state":       int(t.State),
	}, nil
}

func (p *Payme) checkTransaction(r *http.Request, raw json.RawMessage) (interface{}, *paymeError) {
	var params paymeTxParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}

	t, err := p.txs.FindByPaymeID(r.Context(), repository.NoTX, params.ID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, &paymeError{Code: paymeErrTxNotFound, Message: "Transaction not found"}
		}
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}
	return map[string]interface{}{
		"create_time":  t.CreateTime,
		"perform_time": t.PerformTime,
		"cancel_time":  t.CancelTime,
		"transaction":  t.PaymeID,
		"state":        int(t.State),
		"reason":       t.Reason,
	}, nil
}

func (p *Payme) getStatement(r *http.Request, raw json.RawMessage) (interface{}, *paymeError) {
	var params paymeStatementParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &paymeError{Code: paymeErrParse, Message: "Parse error"}
	}

	txs, err := p.txs.ListByPeriod(r.Context(), repository.NoTX, time.UnixMilli(params.From), time.UnixMilli(params.To))
	if err != nil {
		return nil, &paymeError{Code: paymeErrSystem, Message: "System error"}
	}

	items := make([]map[string]interface{}, 0, len(txs))
	for _, t := range txs {
		items = append(items, map[string]interface{}{
			"id":           t.PaymeID,
			"time":         t.CreateTime,
			"amount":       t.Amount,
			"account":      map[string]string{"subscription_id": t.MerchantTxID},
			"create_time":  t.CreateTime,
			"perform_time": t.PerformTime,
			"cancel_time":  t.CancelTime,
			"transaction":  t.PaymeID,
			"state":        int(t.State),
			"reason":       t.Reason,
		})
	}
	return map[string]interface{}{"transactions": items}, nil
}

func createResult(t *model.PaymeTransaction) map[string]interface{} {
	return map[string]interface{}{
		"create_time": t.CreateTime,
		"transaction": t.PaymeID,
		"state":       int(t.State),
	}
}

func performResult(t *model.PaymeTransaction) map[string]interface{} {
	return map[string]interface{}{
		"perform_time": t.PerformTime,
		"transaction":  t.PaymeID,
		"state":        int(t.State),
	}
}

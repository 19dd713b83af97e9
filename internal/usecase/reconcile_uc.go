package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/repository"
	"qarzdaftari/internal/infra/logging"
	"qarzdaftari/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase is the single place where "money was received" becomes
// "plan changed". Adapters call Complete exactly once per verified terminal
// callback; the ledger claim inside makes repeated calls for the same
// external id harmless.
type ReconcileUseCase interface {
	// Complete applies one subscription credit for a verified payment.
	// isNew=false means the external id was already processed and nothing
	// was written; the returned record is the one from first processing.
	Complete(ctx context.Context, provider model.ProviderName, externalID, merchantTxID string, amount int64, payload []byte) (rec *model.PaymentTransaction, isNew bool, err error)
}

type reconcileUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconcileUseCase(users repository.UserRepository, payments repository.PaymentRepository, subs repository.SubscriptionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{users: users, payments: payments, subs: subs, tm: tm, log: &l}
}

func (u *reconcileUC) Complete(ctx context.Context, provider model.ProviderName, externalID, merchantTxID string, amount int64, payload []byte) (*model.PaymentTransaction, bool, error) {
	txid, err := model.ParseTransactionID(merchantTxID)
	if err != nil {
		// Fail closed: a malformed identifier must never apply a partial
		// update. Logged for manual reconciliation. The request context
		// already carries provider and request_id.
		logging.With(ctx, u.log).Error().Str("external_id", externalID).
			Str("merchant_trans_id", merchantTxID).Msg("malformed transaction identifier; refusing to reconcile")
		return nil, false, domain.ErrMalformedIdentifier
	}

	now := time.Now()
	completed := now
	rec := &model.PaymentTransaction{
		ID:           model.NewPaymentID(),
		UserID:       txid.UserID,
		Provider:     provider,
		Amount:       amount,
		Status:       model.PaymentStatusCompleted,
		ExternalID:   externalID,
		ExternalData: payload,
		CompletedAt:  &completed,
		CreatedAt:    now,
	}

	isNew := false
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// The user must exist before anything is written.
		usr, err := u.users.FindByID(ctx, tx, txid.UserID)
		if err != nil {
			return err
		}
		if usr.IsZero() {
			return domain.ErrUserNotFound
		}

		claim, err := u.payments.ClaimExternal(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !claim.IsNew {
			rec = claim.Existing
			return nil
		}
		isNew = true

		sub := model.NewSubscription(txid.UserID, txid.Plan, provider, amount, rec.ID, now)
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		return u.users.ApplyPlan(ctx, tx, txid.UserID, model.PlanUpdate{
			Plan:                  txid.Plan,
			SubscriptionStatus:    model.SubscriptionStatusActive,
			SubscriptionExpiresAt: sub.ExpiresAt,
			LastPaymentDate:       now,
		})
	})
	if err != nil {
		return nil, false, err
	}

	if isNew {
		metrics.IncPaymentCompleted(string(provider), string(txid.Plan), amount)
		logging.With(ctx, u.log).Info().Str("external_id", externalID).
			Str("user_id", txid.UserID).Str("plan", string(txid.Plan)).Int64("amount", amount).
			Msg("payment reconciled")
	} else {
		metrics.IncDuplicateDelivery(string(provider))
		logging.With(ctx, u.log).Info().Str("external_id", externalID).
			Msg("duplicate delivery answered from ledger")
	}
	return rec, isNew, nil
}

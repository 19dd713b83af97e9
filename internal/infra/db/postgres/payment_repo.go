package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentCols = `id, user_id, provider, amount, status, external_id, external_data, completed_at, created_at`

// ClaimExternal is the ledger's atomic claim-or-get. The UNIQUE index on
// (provider, external_id) makes the conditional insert the serialization
// point: exactly one delivery observes IsNew=true, everyone else gets the
// row that delivery wrote.
func (r *paymentRepo) ClaimExternal(ctx context.Context, tx repository.Tx, p *model.PaymentTransaction) (repository.ClaimResult, error) {
	const q = `
INSERT INTO payment_transactions (` + paymentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (provider, external_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.Provider, p.Amount, p.Status, p.ExternalID, p.ExternalData, p.CompletedAt, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return repository.ClaimResult{}, err
		}
		return repository.ClaimResult{}, domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 1 {
		return repository.ClaimResult{IsNew: true, Existing: p}, nil
	}

	existing, err := r.FindByExternalID(ctx, tx, p.Provider, p.ExternalID)
	if err != nil {
		return repository.ClaimResult{}, err
	}
	return repository.ClaimResult{IsNew: false, Existing: existing}, nil
}

func (r *paymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, provider model.ProviderName, externalID string) (*model.PaymentTransaction, error) {
	const q = `SELECT ` + paymentCols + ` FROM payment_transactions WHERE provider=$1 AND external_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, provider, externalID)
	if err != nil {
		return nil, err
	}

	p := &model.PaymentTransaction{}
	if err := row.Scan(&p.ID, &p.UserID, &p.Provider, &p.Amount, &p.Status, &p.ExternalID, &p.ExternalData, &p.CompletedAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentCols + ` FROM payment_transactions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentTransaction
	for rows.Next() {
		p := new(model.PaymentTransaction)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Provider, &p.Amount, &p.Status, &p.ExternalID, &p.ExternalData, &p.CompletedAt, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, nil
}

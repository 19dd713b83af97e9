package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/repository"
)

var _ repository.PaymeTransactionRepository = (*paymeRepo)(nil)

type paymeRepo struct{ pool *pgxpool.Pool }

func NewPaymeRepo(pool *pgxpool.Pool) *paymeRepo {
	return &paymeRepo{pool: pool}
}

const paymeCols = `payme_id, merchant_trans_id, user_id, amount, state, create_time, perform_time, cancel_time, reason, created_at, updated_at`

func (r *paymeRepo) Save(ctx context.Context, tx repository.Tx, t *model.PaymeTransaction) error {
	const q = `
INSERT INTO payme_transactions (` + paymeCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (payme_id) DO UPDATE SET
  state=$5, perform_time=$7, cancel_time=$8, reason=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, t.PaymeID, t.MerchantTxID, t.UserID, t.Amount, t.State, t.CreateTime, t.PerformTime, t.CancelTime, t.Reason, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymeRepo) FindByPaymeID(ctx context.Context, tx repository.Tx, paymeID string) (*model.PaymeTransaction, error) {
	const q = `SELECT ` + paymeCols + ` FROM payme_transactions WHERE payme_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymeID)
	if err != nil {
		return nil, err
	}

	t := &model.PaymeTransaction{}
	if err := row.Scan(&t.PaymeID, &t.MerchantTxID, &t.UserID, &t.Amount, &t.State, &t.CreateTime, &t.PerformTime, &t.CancelTime, &t.Reason, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return t, nil
}

func (r *paymeRepo) ListByPeriod(ctx context.Context, tx repository.Tx, from, to time.Time) ([]*model.PaymeTransaction, error) {
	const q = `SELECT ` + paymeCols + ` FROM payme_transactions WHERE create_time BETWEEN $1 AND $2 ORDER BY create_time ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymeTransaction
	for rows.Next() {
		t := new(model.PaymeTransaction)
		if err := rows.Scan(&t.PaymeID, &t.MerchantTxID, &t.UserID, &t.Amount, &t.State, &t.CreateTime, &t.PerformTime, &t.CancelTime, &t.Reason, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	return out, nil
}

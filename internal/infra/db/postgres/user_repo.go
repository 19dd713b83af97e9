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

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT id, phone, name, plan_type, subscription_status, subscription_expires_at, last_payment_date, created_at, updated_at FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Plan, &u.SubscriptionStatus, &u.SubscriptionExpiresAt, &u.LastPaymentDate, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// ApplyPlan overwrites the denormalized plan cache. This is deliberately an
// unconditional overwrite, not a merge: the reconciler is the only writer of
// these four fields.
func (r *userRepo) ApplyPlan(ctx context.Context, tx repository.Tx, userID string, up model.PlanUpdate) error {
	const q = `
UPDATE users
   SET plan_type=$2,
       subscription_status=$3,
       subscription_expires_at=$4,
       last_payment_date=$5,
       updated_at=NOW()
 WHERE id=$1;`

	tag, err := execSQL(ctx, r.pool, tx, q, userID, up.Plan, up.SubscriptionStatus, up.SubscriptionExpiresAt, up.LastPaymentDate)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepo) ExpirePlans(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
UPDATE users
   SET plan_type='FREE',
       subscription_status='expired',
       updated_at=NOW()
 WHERE subscription_status='active'
   AND subscription_expires_at IS NOT NULL
   AND subscription_expires_at < $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

package repository

import (
	"context"
	"time"

	"qarzdaftari/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// ApplyPlan unconditionally overwrites the four cached plan fields.
	ApplyPlan(ctx context.Context, tx Tx, userID string, up model.PlanUpdate) error
	// ExpirePlans downgrades users whose paid window has passed; returns the
	// number of affected rows.
	ExpirePlans(ctx context.Context, tx Tx, now time.Time) (int, error)
}

//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

// mockTxManager runs the function directly; unit tests exercise the calls
// made inside the transaction, not transactionality itself.
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.calls++
	return fn(ctx, repository.NoTX)
}

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu       sync.RWMutex
	store    map[string]*model.User
	findErr  error
	zeroFind bool // FindByID answers an empty row instead of an error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
}

func (m *memUserRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.zeroFind {
		return &model.User{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) ApplyPlan(ctx context.Context, _ repository.Tx, userID string, up model.PlanUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Plan = up.Plan
	u.SubscriptionStatus = up.SubscriptionStatus
	exp := up.SubscriptionExpiresAt
	u.SubscriptionExpiresAt = &exp
	lp := up.LastPaymentDate
	u.LastPaymentDate = &lp
	return nil
}

func (m *memUserRepo) ExpirePlans(ctx context.Context, _ repository.Tx, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.store {
		if u.SubscriptionStatus == model.SubscriptionStatusActive &&
			u.SubscriptionExpiresAt != nil && u.SubscriptionExpiresAt.Before(now) {
			u.Plan = model.PlanFree
			u.SubscriptionStatus = model.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

// memPaymentRepo keys rows by (provider, external_id), mirroring the unique
// constraint that backs the real ledger.
type memPaymentRepo struct {
	mu       sync.RWMutex
	byExtID  map[string]*model.PaymentTransaction
	claimErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byExtID: make(map[string]*model.PaymentTransaction)}
}

func ledgerKey(provider model.ProviderName, externalID string) string {
	return string(provider) + "|" + externalID
}

func (m *memPaymentRepo) ClaimExternal(ctx context.Context, _ repository.Tx, p *model.PaymentTransaction) (repository.ClaimResult, error) {
	if m.claimErr != nil {
		return repository.ClaimResult{}, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(p.Provider, p.ExternalID)
	if existing, ok := m.byExtID[key]; ok {
		cp := *existing
		return repository.ClaimResult{IsNew: false, Existing: &cp}, nil
	}
	cp := *p
	m.byExtID[key] = &cp
	return repository.ClaimResult{IsNew: true}, nil
}

func (m *memPaymentRepo) FindByExternalID(ctx context.Context, _ repository.Tx, provider model.ProviderName, externalID string) (*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byExtID[ledgerKey(provider, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, _ repository.Tx, userID string, limit int) ([]*model.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PaymentTransaction
	for _, p := range m.byExtID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type memSubRepo struct {
	mu      sync.RWMutex
	subs    []*model.Subscription
	saveErr error
}

func newMemSubRepo() *memSubRepo { return &memSubRepo{} }

func (m *memSubRepo) Save(ctx context.Context, _ repository.Tx, s *model.Subscription) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs = append(m.subs, &cp)
	return nil
}

func (m *memSubRepo) ListByUser(ctx context.Context, _ repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}
